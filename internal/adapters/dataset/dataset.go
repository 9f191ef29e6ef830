// Package dataset opens exported feature datasets as named layers of features
//
// A dataset is a directory. Every layer file inside it (parquet, csv, csv.gz, csv.zst) is a
// layer named after the file stem; a subdirectory holding layer files is one layer made of
// all its parts, read in name order.
package dataset

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perr "gridintake/internal/platform/errors"

	"github.com/paulmach/orb"
)

// Feature is one record of a layer; attribute names are upper-cased
type Feature struct {
	Attrs map[string]string
	Geom  orb.Geometry
}

// Get returns the raw attribute value for name, case-insensitive
func (f Feature) Get(name string) string { return f.Attrs[strings.ToUpper(name)] }

// Container lists and reads the layers of one dataset
type Container interface {
	Layers() []string
	// Columns lists the upper-cased attribute names a layer declares, across all of its parts
	Columns(ctx context.Context, layer string) ([]string, error)
	// Features streams a layer; the sequence is single use and stops at the first error
	Features(ctx context.Context, layer string) iter.Seq2[Feature, error]
	Close() error
}

type format int

const (
	formatParquet format = iota
	formatCSV
)

type part struct {
	path   string
	format format
}

// Dir is a Container over a dataset directory
type Dir struct {
	root   string
	layers map[string][]part
	names  []string
}

// Open scans root for layers; a single layer file is accepted as a one layer dataset
func Open(root string) (*Dir, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "open dataset %s", root)
	}
	d := &Dir{root: root, layers: map[string][]part{}}
	if !fi.IsDir() {
		name, f, ok := classify(fi.Name())
		if !ok {
			return nil, perr.Structuralf("%s is not a layer file", root)
		}
		d.add(name, part{path: root, format: f})
		return d, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStructural, "read dataset %s", root)
	}
	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		if e.IsDir() {
			parts, err := partsIn(p)
			if err != nil {
				return nil, err
			}
			for _, pt := range parts {
				d.add(e.Name(), pt)
			}
			continue
		}
		if name, f, ok := classify(e.Name()); ok {
			d.add(name, part{path: p, format: f})
		}
	}
	if len(d.names) == 0 {
		return nil, perr.Structuralf("dataset %s has no layers", root)
	}
	return d, nil
}

func (d *Dir) add(name string, p part) {
	if _, ok := d.layers[name]; !ok {
		d.names = append(d.names, name)
	}
	d.layers[name] = append(d.layers[name], p)
}

// Layers returns the layer names sorted
func (d *Dir) Layers() []string {
	out := append([]string(nil), d.names...)
	sort.Strings(out)
	return out
}

// Columns reads the schema of every part of layer without reading its rows
func (d *Dir) Columns(ctx context.Context, layer string) ([]string, error) {
	parts, ok := d.layers[layer]
	if !ok {
		return nil, perr.NotFoundf("layer %s not found", layer)
	}
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			cols []string
			err  error
		)
		switch p.format {
		case formatParquet:
			cols, err = parquetColumns(p.path)
		default:
			cols, err = textColumns(p.path)
		}
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if !seen[c] && !isGeomColumn(c) {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// Features streams every part of layer in order
func (d *Dir) Features(ctx context.Context, layer string) iter.Seq2[Feature, error] {
	return func(yield func(Feature, error) bool) {
		parts, ok := d.layers[layer]
		if !ok {
			yield(Feature{}, perr.NotFoundf("layer %s not found", layer))
			return
		}
		for _, p := range parts {
			var seq iter.Seq2[Feature, error]
			switch p.format {
			case formatParquet:
				seq = parquetFeatures(ctx, p.path)
			default:
				seq = textFeatures(ctx, p.path)
			}
			for f, err := range seq {
				if !yield(f, err) || err != nil {
					return
				}
			}
		}
	}
}

// Close releases nothing today; files are opened per iteration
func (d *Dir) Close() error { return nil }

func partsIn(dir string) ([]part, error) {
	var out []part
	err := filepath.WalkDir(dir, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		if _, f, ok := classify(e.Name()); ok {
			out = append(out, part{path: p, format: f})
		}
		return nil
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStructural, "scan layer dir %s", dir)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

// classify maps a file name to its layer name and format
func classify(name string) (string, format, bool) {
	lower := strings.ToLower(name)
	for _, s := range []struct {
		suffix string
		f      format
	}{
		{".parquet", formatParquet},
		{".csv.gz", formatCSV},
		{".csv.zst", formatCSV},
		{".csv", formatCSV},
	} {
		if strings.HasSuffix(lower, s.suffix) && len(name) > len(s.suffix) {
			return name[:len(name)-len(s.suffix)], s.f, true
		}
	}
	return "", 0, false
}
