package module

import (
	"time"

	"gridintake/internal/platform/config"
)

// Options holds configuration options for the worker
type Options struct {
	ID           string
	PollInterval time.Duration
	RetryBase    time.Duration
	RetryMax     time.Duration
	LeaseTimeout time.Duration
	ReapEvery    time.Duration
	ImportBin    string
	ScriptDir    string
	Niceness     int
	IOClassData  int
	OpsAddr      string
}

// FromConfig reads the worker options from config with GRIDINTAKE_WORKER_ prefix
func FromConfig(cfg config.Conf) Options {
	w := cfg.Prefix("GRIDINTAKE_WORKER_")
	return Options{
		ID:           w.MayString("ID", ""),
		PollInterval: w.MayDuration("POLL_INTERVAL", 2*time.Second),
		RetryBase:    w.MayDuration("RETRY_BASE", time.Minute),
		RetryMax:     w.MayDuration("RETRY_MAX", 10*time.Minute),
		LeaseTimeout: w.MayDuration("LEASE_TIMEOUT", 0),
		ReapEvery:    w.MayDuration("REAP_EVERY", time.Minute),
		ImportBin:    w.MayString("IMPORT_BIN", "gridintake-import"),
		ScriptDir:    w.MayString("SCRIPT_DIR", ""),
		Niceness:     w.MayInt("NICENESS", 15),
		IOClassData:  w.MayInt("IO_CLASS_DATA", 7),
		OpsAddr:      w.MayString("OPS_ADDR", ":9108"),
	}
}
