package dataset

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	perr "gridintake/internal/platform/errors"

	"github.com/parquet-go/parquet-go"
)

const parquetBatch = 256

// parquetFeatures streams the rows of one parquet file; nested columns are joined with a dot
func parquetFeatures(ctx context.Context, path string) iter.Seq2[Feature, error] {
	return func(yield func(Feature, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(Feature{}, perr.Wrapf(err, perr.ErrorCodeStructural, "open %s", path))
			return
		}
		defer func() { _ = f.Close() }()

		r := parquet.NewReader(f)
		defer func() { _ = r.Close() }()

		names := columnNames(r.Schema())

		rows := make([]parquet.Row, parquetBatch)
		for {
			if err := ctx.Err(); err != nil {
				yield(Feature{}, err)
				return
			}
			n, rerr := r.ReadRows(rows)
			for _, row := range rows[:n] {
				if !yield(rowFeature(names, row), nil) {
					return
				}
			}
			if errors.Is(rerr, io.EOF) {
				return
			}
			if rerr != nil {
				yield(Feature{}, perr.Wrapf(rerr, perr.ErrorCodeStructural, "read %s", path))
				return
			}
		}
	}
}

// parquetColumns reads the column names from the file footer
func parquetColumns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStructural, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStructural, "stat %s", path)
	}
	pf, err := parquet.OpenFile(f, fi.Size())
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStructural, "parquet footer %s", path)
	}
	return columnNames(pf.Schema()), nil
}

func columnNames(s *parquet.Schema) []string {
	paths := s.Columns()
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = strings.ToUpper(strings.Join(p, "."))
	}
	return names
}

func rowFeature(names []string, row parquet.Row) Feature {
	ft := Feature{Attrs: make(map[string]string, len(row))}
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(names) || v.IsNull() {
			continue
		}
		name := names[col]
		if isGeomColumn(name) {
			if ft.Geom == nil {
				switch v.Kind() {
				case parquet.ByteArray, parquet.FixedLenByteArray:
					b := v.ByteArray()
					if g := decodeWKB(b); g != nil {
						ft.Geom = g
					} else {
						ft.Geom = decodeWKT(string(b))
					}
				}
			}
			continue
		}
		// repeated columns keep the first value
		if _, seen := ft.Attrs[name]; seen {
			continue
		}
		ft.Attrs[name] = valueText(v)
	}
	return ft
}

func valueText(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
