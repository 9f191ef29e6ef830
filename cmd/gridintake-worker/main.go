package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gridintake/internal/core/version"
	"gridintake/internal/modkit"
	"gridintake/internal/modkit/module"
	"gridintake/internal/modkit/repokit"
	"gridintake/internal/platform/config"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/metrics"
	phttp "gridintake/internal/platform/net/http"
	"gridintake/internal/platform/store"
	"gridintake/internal/schema"

	dlmod "gridintake/internal/services/download/module"
	qmod "gridintake/internal/services/queue/module"
	workermod "gridintake/internal/services/worker/module"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	fVersion := flag.Bool("version", false, "print build info and exit")
	flag.Parse()

	info := version.Info("gridintake-worker")
	if *fVersion {
		fmt.Println(info.String())
		return
	}

	root := config.New()
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.ConfigFromEnv("gridintake-worker", root.Prefix("SERVICE_PGSQL_")),
		store.WithLogger(*l), store.WithCheck("schema", schema.Check))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	repokit.MustGuard(ctx, st)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := modkit.Deps{
		Cfg:     root,
		PG:      st.PG,
		Log:     *l,
		Metrics: metrics.New(reg, metrics.DefaultNamespace),
	}

	qmod.Register(deps)
	dlmod.Register(deps)
	wm := workermod.Register(deps)
	ports := module.MustPortsOf[workermod.Ports](wm)

	srv := phttp.NewServer(wm.Options().OpsAddr, phttp.Ops(st.Guard, deps.Metrics.Handler()))

	l.Info().Str("version", info.Version).Str("commit", info.Commit).Msg("gridintake-worker starting")

	// a failing ops server stops the worker too; a signal lets the running import finish first
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		err := ports.Worker.Run(gctx)
		stop()
		return err
	})
	if err := g.Wait(); err != nil {
		l.Error().Err(err).Msg("gridintake-worker stopped with error")
		os.Exit(1)
	}
	l.Info().Msg("gridintake-worker stopped")
}
