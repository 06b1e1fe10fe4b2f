// Package tabular reads the delimited-text and spreadsheet sources and binds
// them to a fixed schema per input kind.
package tabular

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header row and the data rows beneath it.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadOptions configures ReadRows for one source.
type ReadOptions struct {
	Encoding string // delimited text only
	// Sheet selects the .xlsx worksheet: a sheet name, or a zero-based
	// position when it is a plain number. Empty means the first sheet.
	Sheet string
}

func (o ReadOptions) xlsx() XLSXOptions {
	if o.Sheet == "" {
		return XLSXOptions{}
	}
	if n, err := strconv.Atoi(o.Sheet); err == nil {
		return XLSXOptions{SheetIndex: n}
	}
	return XLSXOptions{SheetName: o.Sheet}
}

// ReadRows reads a tabular file, dispatching on extension: .csv, .txt and
// .tsv are streamed as delimited text decoded from opts.Encoding; .xlsx reads
// the worksheet selected by opts.Sheet. The first row is the header.
func ReadRows(ctx context.Context, path string, opts ReadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := ReadXLSX(path, opts.xlsx())
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, eris.Errorf("tabular: %s has no header row", path)
		}
		return &Table{Header: trimAll(rows[0]), Rows: rows[1:]}, nil
	case ".csv", ".txt", ".tsv", "":
		return readDelimited(ctx, path, opts.Encoding)
	default:
		return nil, eris.Errorf("tabular: unsupported file type %q", filepath.Ext(path))
	}
}

func readDelimited(ctx context.Context, path, encoding string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: open file")
	}
	defer f.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, f, CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		Encoding:   encoding,
		LazyQuotes: true,
	})

	t := &Table{}
	for row := range rowCh {
		t.Rows = append(t.Rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: read %s", path)
		}
	}

	select {
	case h := <-headerCh:
		t.Header = trimAll(h)
	default:
		return nil, eris.Errorf("tabular: %s has no header row", path)
	}
	return t, nil
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
