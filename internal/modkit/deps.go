// Package modkit provides module wiring and core deps
package modkit

import (
	"gridintake/internal/modkit/repokit"
	"gridintake/internal/platform/config"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/metrics"
)

// Deps is what a main hands to every module's New
// PG may be nil in unit tests; a nil Metrics records nothing
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	Metrics *metrics.Metrics
}
