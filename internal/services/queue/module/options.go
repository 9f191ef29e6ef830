package module

import (
	"gridintake/internal/platform/config"
)

// Options holds configuration options for the queue
type Options struct {
	DefaultPriority   int
	DefaultMaxRetries int
}

// FromConfig reads the queue options from config with GRIDINTAKE_QUEUE_ prefix
func FromConfig(cfg config.Conf) Options {
	q := cfg.Prefix("GRIDINTAKE_QUEUE_")
	return Options{
		DefaultPriority:   q.MayInt("DEFAULT_PRIORITY", 5),
		DefaultMaxRetries: q.MayInt("DEFAULT_MAX_RETRIES", 3),
	}
}
