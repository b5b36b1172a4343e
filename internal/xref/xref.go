// Package xref links keyword-scanner excerpts to facility clusters by
// country mention. The linkage is a weak textual heuristic: annotations are
// evidence attached to the report, never an input to any other stage.
package xref

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/sells-group/facility-atlas/internal/model"
)

// builtinAliases maps normalized alternate spellings onto the canonical
// country form. Operators extend or override the table through config; an
// empty target suppresses a name entirely.
var builtinAliases = map[string]string{
	"VIET NAM":                 "VIETNAM",
	"USA":                      "UNITED STATES",
	"US":                       "UNITED STATES",
	"U S":                      "UNITED STATES",
	"U S A":                    "UNITED STATES",
	"UNITED STATES OF AMERICA": "UNITED STATES",
	"UK":                       "UNITED KINGDOM",
	"U K":                      "UNITED KINGDOM",
	"GREAT BRITAIN":            "UNITED KINGDOM",
	"BURMA":                    "MYANMAR",
	"PRC":                      "CHINA",
	"P R C":                    "CHINA",
	"HONGKONG":                 "HONG KONG",
	"KOREA":                    "SOUTH KOREA",
}

// Annotator matches excerpt country mentions against cluster countries.
type Annotator struct {
	aliases map[string]string
}

// New builds an annotator. Overrides are merged on top of the built-in alias
// table; keys and values pass through the same normalization as lookups.
func New(overrides map[string]string) *Annotator {
	aliases := make(map[string]string, len(builtinAliases)+len(overrides))
	for k, v := range builtinAliases {
		aliases[k] = v
	}
	for k, v := range overrides {
		aliases[normalizeBase(k)] = normalizeBase(v)
	}
	return &Annotator{aliases: aliases}
}

// NormalizeCountry canonicalizes a country mention: trim, uppercase, strip
// punctuation, collapse whitespace, then one alias hop.
func (a *Annotator) NormalizeCountry(s string) string {
	base := normalizeBase(s)
	if target, ok := a.aliases[base]; ok {
		return target
	}
	return base
}

// Annotate links each excerpt to every cluster whose country matches the
// excerpt's mentioned country after normalization. Annotation lists keep
// excerpt input order; keys are cluster key strings. Missing or unmatchable
// mentions are skipped, never an error.
func (a *Annotator) Annotate(clusters []model.Cluster, excerpts []model.Excerpt) map[string][]model.ExcerptRef {
	annotations := make(map[string][]model.ExcerptRef)
	if len(excerpts) == 0 || len(clusters) == 0 {
		return annotations
	}

	byCountry := make(map[string][]string)
	for _, c := range clusters {
		norm := a.NormalizeCountry(c.Country)
		if norm == "" {
			continue
		}
		byCountry[norm] = append(byCountry[norm], c.Key().String())
	}

	matched := 0
	for _, e := range excerpts {
		norm := a.NormalizeCountry(e.MentionedCountry)
		if norm == "" {
			continue
		}
		keys, ok := byCountry[norm]
		if !ok {
			continue
		}
		matched++
		for _, key := range keys {
			annotations[key] = append(annotations[key], e.Ref())
		}
	}

	zap.L().Debug("xref: annotation pass complete",
		zap.Int("excerpts", len(excerpts)),
		zap.Int("matched", matched),
		zap.Int("annotated_clusters", len(annotations)),
	)
	return annotations
}

// normalizeBase uppercases and collapses a name with punctuation replaced by
// spaces, so "U.S.A." and "Viet-Nam" compare cleanly.
func normalizeBase(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s)
	return strings.ToUpper(strings.Join(strings.Fields(mapped), " "))
}
