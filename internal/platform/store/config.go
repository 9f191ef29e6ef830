package store

import (
	"time"

	"gridintake/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled         bool
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	LogSQL          bool
	SlowQueryMs     int

	// Guard/boot knobs:
	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// ConfigFromEnv reads the postgres block from a prefixed conf (e.g. SERVICE_PGSQL_)
func ConfigFromEnv(appName string, c config.Conf) Config {
	return Config{
		AppName: appName,
		PG: PGConfig{
			Enabled:         true,
			URL:             c.MustString("DBURL"),
			MaxConns:        int32(c.MayInt("MAX_CONNS", 8)),
			MinConns:        int32(c.MayInt("MIN_CONNS", 0)),
			MaxConnLifetime: c.MayDuration("MAX_CONN_LIFETIME", 30*time.Minute),
			LogSQL:          c.MayBool("LOG_SQL", false),
			SlowQueryMs:     c.MayInt("SLOW_MS", 500),
			ConnectRetries:  c.MayInt("CONNECT_RETRIES", 20),
			PingTimeout:     c.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
	}
}
