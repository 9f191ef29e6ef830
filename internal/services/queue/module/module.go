// Package module wires the work queue as a modkit module
package module

import (
	"gridintake/internal/modkit"
	modreg "gridintake/internal/modkit/module"

	"gridintake/internal/services/queue/domain"
	"gridintake/internal/services/queue/repo"
	"gridintake/internal/services/queue/service"
)

// Ports exported by the queue module
type Ports struct {
	Queue domain.QueuePort
}

// Module implements module.Module for the queue
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the queue module using GRIDINTAKE_QUEUE_* from deps.Cfg
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps.PG, repo.NewPG(), service.Config{
		DefaultPriority:   opts.DefaultPriority,
		DefaultMaxRetries: opts.DefaultMaxRetries,
	}, deps.Metrics)
	return &Module{deps: deps, ports: Ports{Queue: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "queue" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Register makes the queue resolvable through the registry
func Register(deps modkit.Deps) *Module {
	m := New(deps)
	modreg.Register(m.Name(), m.ports)
	return m
}
