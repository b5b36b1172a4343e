package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/facility-atlas/internal/model"
)

// CSVOptions configures delimited-text parsing.
type CSVOptions struct {
	// Delimiter defaults to ','.
	Delimiter rune
	// Comment, when set, skips lines starting with this rune.
	Comment rune
	// LazyQuotes tolerates bare quotes inside unquoted fields, which the
	// legacy export produces for facility names like `Eastern "A" Plant`.
	LazyQuotes bool
	// Charset names the source encoding by IANA name, e.g. "windows-1252".
	// Empty or any spelling of UTF-8 is a passthrough.
	Charset string
}

// StreamCSV reads delimited rows from r and delivers them on the returned
// channel. Both channels close when parsing finishes; the error channel
// carries at most one value.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		decoded, err := decodeCharset(r, opts.Charset)
		if err != nil {
			errCh <- err
			return
		}

		reader := csv.NewReader(decoded)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = opts.LazyQuotes
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}

		for {
			select {
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetcher: csv stream cancelled")
				return
			default:
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "fetcher: read csv record")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetcher: csv stream cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// decodeCharset wraps r so the stream decodes from the named encoding to
// UTF-8. Unknown names fail instead of passing mojibake through.
func decodeCharset(r io.Reader, name string) (io.Reader, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: unknown charset %q", name)
	}
	return enc.NewDecoder().Reader(r), nil
}

// ReadFacilitiesCSV parses a delimited facility snapshot. The first row is
// the header; see mapHeader for column matching.
func ReadFacilitiesCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.FacilityRow, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)

	var (
		out    []model.FacilityRow
		cm     columnMap
		mapped bool
	)
	for cells := range rowCh {
		if !mapped {
			m, err := mapHeader(cells)
			if err != nil {
				for range rowCh {
				}
				<-errCh
				return nil, err
			}
			cm, mapped = m, true
			continue
		}
		out = append(out, cm.row(cells))
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}
