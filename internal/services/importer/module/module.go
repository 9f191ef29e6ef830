// Package module wires the importer as a modkit module
package module

import (
	"gridintake/internal/modkit"
	modreg "gridintake/internal/modkit/module"
	"gridintake/internal/modkit/repokit"
	"gridintake/internal/platform/logger"

	"gridintake/internal/services/importer/domain"
	"gridintake/internal/services/importer/repo"
	"gridintake/internal/services/importer/service"
	rsmodule "gridintake/internal/services/runstatus/module"
)

// Ports exported by the importer module
type Ports struct {
	Importer domain.ImporterPort
}

// Module implements module.Module for the importer
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the importer module using GRIDINTAKE_IMPORT_* from deps.Cfg
// The run tracker comes from the registry when runstatus is registered
func New(deps modkit.Deps) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	mapping, err := service.LoadMapping(opts.MappingFile)
	if err != nil {
		return nil, err
	}

	rs := modreg.Resolve[rsmodule.Ports]("runstatus", func() modreg.Module { return rsmodule.New(deps) })

	db := deps.PG
	if settings := opts.TxSettings(); len(settings) > 0 {
		db = repokit.WithBeginHooks(db, repokit.SetLocal(settings))
	}

	svc := service.New(db, repo.NewPG(), rs.Tracker, mapping, service.Config{
		ChunkSize: opts.ChunkSize,
		TxTimeout: opts.TxTimeout,
	}, deps.Metrics)

	if opts.MappingFile != "" {
		logger.Named("importer").Info().Str("file", opts.MappingFile).Msg("importer: using mapping file")
	}
	return &Module{deps: deps, ports: Ports{Importer: svc}}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "importer" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Register makes the importer resolvable through the registry
func Register(deps modkit.Deps) (*Module, error) {
	m, err := New(deps)
	if err != nil {
		return nil, err
	}
	modreg.Register(m.Name(), m.ports)
	return m, nil
}
