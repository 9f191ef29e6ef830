// Package module wires the downloader as a modkit module
package module

import (
	"gridintake/internal/modkit"
	modreg "gridintake/internal/modkit/module"

	"gridintake/internal/services/download/domain"
	"gridintake/internal/services/download/repo"
	"gridintake/internal/services/download/service"
)

// Ports exported by the download module
type Ports struct {
	Fetcher domain.FetcherPort
}

// Module implements module.Module for the downloader
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the download module using GRIDINTAKE_DOWNLOAD_* from deps.Cfg
func New(deps modkit.Deps) *Module {
	o := FromConfig(deps.Cfg)
	svc := service.New(deps.PG, repo.NewPG(), service.Config{
		Dir:         o.Dir,
		TmpDir:      o.TmpDir,
		MaxKbps:     o.MaxKbps,
		HTTPTimeout: o.HTTPTimeout,
		ChunkBytes:  o.ChunkBytes,
	}, deps.Metrics)
	return &Module{deps: deps, ports: Ports{Fetcher: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "download" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Register makes the downloader resolvable through the registry
func Register(deps modkit.Deps) *Module {
	m := New(deps)
	modreg.Register(m.Name(), m.ports)
	return m
}
