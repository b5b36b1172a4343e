package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/facility-atlas/internal/model"
)

// ReadExcerpts decodes a JSON array of document excerpts. Elements are
// decoded one at a time, so collaborator exports of any size parse in
// constant memory.
func ReadExcerpts(ctx context.Context, r io.Reader) ([]model.Excerpt, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read excerpts")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, eris.Errorf("fetcher: excerpts must be a JSON array, got %v", tok)
	}

	var out []model.Excerpt
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "fetcher: excerpt decode cancelled")
		}
		var ex model.Excerpt
		if err := dec.Decode(&ex); err != nil {
			return nil, eris.Wrapf(err, "fetcher: decode excerpt %d", len(out))
		}
		out = append(out, ex)
	}

	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "fetcher: read excerpts")
	}
	return out, nil
}

// ReadExcerptsFile reads a JSON excerpt export from disk.
func ReadExcerptsFile(ctx context.Context, path string) ([]model.Excerpt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open excerpts %s", path)
	}
	defer f.Close()

	return ReadExcerpts(ctx, f)
}
