package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml",
	Long:  "Writes the effective configuration, defaults plus any environment overrides, to a YAML file as a starting point for local tuning.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !initForce {
			if _, err := os.Stat(initOutput); err == nil {
				return eris.Errorf("%s already exists (use --force to overwrite)", initOutput)
			}
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}

		if err := os.WriteFile(initOutput, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", initOutput)
		}

		zap.L().Info("config scaffold written", zap.String("path", initOutput))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initOutput, "output", "config.yaml", "destination file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}
