// Package module wires the run status tracker as a modkit module
package module

import (
	"gridintake/internal/modkit"
	modreg "gridintake/internal/modkit/module"

	"gridintake/internal/services/runstatus/domain"
	"gridintake/internal/services/runstatus/repo"
	"gridintake/internal/services/runstatus/service"
)

// Ports exported by the runstatus module
type Ports struct {
	Tracker domain.TrackerPort
}

// Module implements module.Module for runstatus
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the runstatus module
func New(deps modkit.Deps) *Module {
	svc := service.New(deps.PG, repo.NewPG(), deps.Metrics)
	return &Module{deps: deps, ports: Ports{Tracker: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "runstatus" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Register makes the tracker resolvable through the registry
func Register(deps modkit.Deps) *Module {
	m := New(deps)
	modreg.Register(m.Name(), m.ports)
	return m
}
