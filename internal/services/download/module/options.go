package module

import (
	"time"

	"gridintake/internal/platform/config"
)

// Options holds configuration options for the downloader
type Options struct {
	Dir         string
	TmpDir      string
	MaxKbps     int
	HTTPTimeout time.Duration
	ChunkBytes  int
}

// FromConfig reads the downloader options from config with GRIDINTAKE_DOWNLOAD_ prefix
func FromConfig(cfg config.Conf) Options {
	d := cfg.Prefix("GRIDINTAKE_DOWNLOAD_")
	return Options{
		Dir:         d.MayString("DIR", "data/downloads"),
		TmpDir:      d.MayString("TMP_DIR", "data/tmp"),
		MaxKbps:     d.MayInt("MAX_KBPS", 256),
		HTTPTimeout: d.MayDuration("HTTP_TIMEOUT", 30*time.Second),
		ChunkBytes:  d.MayBytes("CHUNK_BYTES", 256<<10),
	}
}
