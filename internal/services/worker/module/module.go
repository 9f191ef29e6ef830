// Package module wires the queue worker as a modkit module
package module

import (
	"gridintake/internal/modkit"
	modreg "gridintake/internal/modkit/module"
	"gridintake/internal/platform/sched"

	dlmodule "gridintake/internal/services/download/module"
	qmodule "gridintake/internal/services/queue/module"
	"gridintake/internal/services/worker/domain"
	"gridintake/internal/services/worker/service"
)

// Ports exported by the worker module
type Ports struct {
	Worker domain.WorkerPort
}

// Module implements module.Module for the worker
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the worker; the queue and downloader come from the registry when
// already registered, otherwise they are built from deps
func New(deps modkit.Deps) *Module {
	o := FromConfig(deps.Cfg)

	q := modreg.Resolve[qmodule.Ports]("queue", func() modreg.Module { return qmodule.New(deps) })
	dl := modreg.Resolve[dlmodule.Ports]("download", func() modreg.Module { return dlmodule.New(deps) })

	svc := service.New(q.Queue, dl.Fetcher, sched.Default(), service.Config{
		ID:           o.ID,
		PollInterval: o.PollInterval,
		RetryBase:    o.RetryBase,
		RetryMax:     o.RetryMax,
		LeaseTimeout: o.LeaseTimeout,
		ReapEvery:    o.ReapEvery,
		ImportBin:    o.ImportBin,
		ScriptDir:    o.ScriptDir,
		Priority:     sched.Priority{Niceness: o.Niceness, IOClassData: o.IOClassData},
	}, deps.Metrics)
	return &Module{deps: deps, opts: o, ports: Ports{Worker: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "worker" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the resolved options (the binary reads OpsAddr from it)
func (m *Module) Options() Options { return m.opts }

// Register makes the worker resolvable through the registry
func Register(deps modkit.Deps) *Module {
	m := New(deps)
	modreg.Register(m.Name(), m.ports)
	return m
}
