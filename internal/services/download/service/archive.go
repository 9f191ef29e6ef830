package service

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	perr "gridintake/internal/platform/errors"

	"github.com/klauspost/compress/zip"
)

var zipMagic = []byte("PK\x03\x04")

// layerSuffixes are the files a dataset directory is recognized by
var layerSuffixes = []string{".parquet", ".csv", ".csv.gz", ".csv.zst"}

// isZip reports whether path is a zip archive, by suffix or magic bytes
func isZip(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, zipMagic)
}

// isLayerFile reports whether name looks like a layer file
func isLayerFile(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range layerSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// extract unpacks archive into dir, refusing entries that escape it
func extract(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeStructural, "open archive")
	}
	defer func() { _ = zr.Close() }()

	root, err := filepath.Abs(dir)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "resolve extract dir")
	}
	for _, zf := range zr.File {
		dst := filepath.Join(root, filepath.FromSlash(zf.Name))
		if dst != root && !strings.HasPrefix(dst, root+string(os.PathSeparator)) {
			return perr.Structuralf("archive entry %q escapes extraction dir", zf.Name)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return perr.Wrap(err, perr.ErrorCodeUnknown, "mkdir")
			}
			continue
		}
		if err := writeEntry(zf, dst); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(zf *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "mkdir")
	}
	rc, err := zf.Open()
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStructural, "open entry %s", zf.Name)
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "create entry")
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return perr.Wrapf(err, perr.ErrorCodeStructural, "extract %s", zf.Name)
	}
	return out.Close()
}

// locateDataset finds the dataset directory under root
// A directory named *.gdb wins; otherwise the shallowest directory holding layer files
func locateDataset(root string) (string, error) {
	var (
		gdb       string
		best      string
		bestDepth = -1
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasSuffix(strings.ToLower(d.Name()), ".gdb") {
				gdb = path
				return fs.SkipAll
			}
			return nil
		}
		if !isLayerFile(d.Name()) {
			return nil
		}
		dir := filepath.Dir(path)
		depth := strings.Count(strings.TrimPrefix(dir, root), string(os.PathSeparator))
		if bestDepth < 0 || depth < bestDepth {
			best, bestDepth = dir, depth
		}
		return nil
	})
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "scan extracted archive")
	}
	if gdb != "" {
		return gdb, nil
	}
	if best == "" {
		return "", perr.Structuralf("archive has no recognizable dataset")
	}
	return best, nil
}
