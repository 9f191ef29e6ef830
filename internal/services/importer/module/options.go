package module

import (
	"strconv"
	"time"

	"gridintake/internal/platform/config"
)

// Options holds configuration options for the importer
type Options struct {
	ChunkSize   int
	MappingFile string
	TxTimeout   time.Duration
	LockTimeout time.Duration
	SyncCommit  bool
}

// FromConfig reads the importer options from config with GRIDINTAKE_IMPORT_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("GRIDINTAKE_IMPORT_")
	return Options{
		ChunkSize:   c.MayInt("CHUNK_SIZE", 5000),
		MappingFile: c.MayString("MAPPING_FILE", ""),
		TxTimeout:   c.MayDuration("TX_TIMEOUT", 10*time.Minute),
		LockTimeout: c.MayDuration("LOCK_TIMEOUT", 30*time.Second),
		SyncCommit:  c.MayBool("SYNC_COMMIT", true),
	}
}

// TxSettings are the SET LOCAL values applied to every chunk transaction
func (o Options) TxSettings() map[string]string {
	s := map[string]string{}
	if o.TxTimeout > 0 {
		s["statement_timeout"] = strconv.FormatInt(o.TxTimeout.Milliseconds(), 10)
	}
	if o.LockTimeout > 0 {
		s["lock_timeout"] = strconv.FormatInt(o.LockTimeout.Milliseconds(), 10)
	}
	if !o.SyncCommit {
		// a lost chunk is reloaded by the next run, rows are insert-if-absent
		s["synchronous_commit"] = "off"
	}
	return s
}
