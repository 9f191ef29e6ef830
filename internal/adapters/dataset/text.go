package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"os"
	"strings"

	perr "gridintake/internal/platform/errors"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// textFeatures streams a delimited text layer, sniffing ';' or ',' from the header line
func textFeatures(ctx context.Context, path string) iter.Seq2[Feature, error] {
	return func(yield func(Feature, error) bool) {
		rc, err := openText(path)
		if err != nil {
			yield(Feature{}, err)
			return
		}
		defer func() { _ = rc.Close() }()

		cr := newCSVReader(rc)
		names, err := readHeader(cr, path)
		if err != nil {
			yield(Feature{}, err)
			return
		}
		if names == nil {
			return
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(Feature{}, err)
				return
			}
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Feature{}, perr.Wrapf(err, perr.ErrorCodeStructural, "read %s", path))
				return
			}
			ft := Feature{Attrs: make(map[string]string, len(names))}
			for i, v := range rec {
				if i >= len(names) {
					break
				}
				if isGeomColumn(names[i]) {
					if ft.Geom == nil {
						ft.Geom = decodeWKT(v)
					}
					continue
				}
				ft.Attrs[names[i]] = v
			}
			if !yield(ft, nil) {
				return
			}
		}
	}
}

// textColumns reads only the header line of a text layer
func textColumns(path string) ([]string, error) {
	rc, err := openText(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return readHeader(newCSVReader(rc), path)
}

func newCSVReader(r io.Reader) *csv.Reader {
	br := bufio.NewReaderSize(r, 64<<10)
	cr := csv.NewReader(br)
	cr.Comma = sniffComma(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// readHeader returns the upper-cased column names; an empty file has none
func readHeader(cr *csv.Reader, path string) ([]string, error) {
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStructural, "read header of %s", path)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	return names, nil
}

type multiCloser struct {
	io.Reader
	closers []func() error
}

func (m multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openText(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStructural, "open %s", path)
	}
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, perr.Wrapf(err, perr.ErrorCodeStructural, "gzip %s", path)
		}
		return multiCloser{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil
	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, perr.Wrapf(err, perr.ErrorCodeStructural, "zstd %s", path)
		}
		return multiCloser{Reader: zr, closers: []func() error{func() error { zr.Close(); return nil }, f.Close}}, nil
	default:
		return f, nil
	}
}

// sniffComma picks ';' when the first line has more semicolons than commas
func sniffComma(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	if i := strings.IndexByte(string(line), '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(string(line), ";") > strings.Count(string(line), ",") {
		return ';'
	}
	return ','
}
