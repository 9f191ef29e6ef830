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
	"gridintake/internal/platform/config"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/store"
	"gridintake/internal/schema"

	imdom "gridintake/internal/services/importer/domain"
	immod "gridintake/internal/services/importer/module"
	rsmod "gridintake/internal/services/runstatus/module"
)

func main() { os.Exit(run()) }

// run imports one layer and maps the outcome onto the worker exit code contract
func run() int {
	var (
		fDataset  = flag.String("dataset", "", "dataset directory or file")
		fCategory = flag.String("category", "", "layer category, e.g. UCMT")
		fYear     = flag.Int("year", 0, "reference year")
		fSource   = flag.String("source", "", "distributor id")
		fVersion  = flag.Bool("version", false, "print build info and exit")
	)
	flag.Parse()

	info := version.Info("gridintake-import")
	if *fVersion {
		fmt.Println(info.String())
		return perr.ExitOK
	}

	root := config.New()
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.ConfigFromEnv("gridintake-import", root.Prefix("SERVICE_PGSQL_")),
		store.WithLogger(*l), store.WithCheck("schema", schema.Check))
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		return perr.ExitRetryable
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := st.Guard(ctx); err != nil {
		l.Error().Err(err).Msg("store not ready")
		return perr.ExitRetryable
	}

	deps := modkit.Deps{Cfg: root, PG: st.PG, Log: *l}
	rsmod.Register(deps)
	im, err := immod.Register(deps)
	if err != nil {
		l.Error().Err(err).Msg("importer setup failed")
		return perr.ExitCode(err)
	}
	ports := module.MustPortsOf[immod.Ports](im)

	res, err := ports.Importer.Run(ctx, imdom.Request{
		Dataset:  *fDataset,
		Category: *fCategory,
		Year:     *fYear,
		Source:   *fSource,
	})
	if err != nil {
		// the worker keeps the last stderr line as the job error
		fmt.Fprintln(os.Stderr, err.Error())
		return perr.ExitCode(err)
	}
	fmt.Println(res.Outcome.String(), res.Observations())
	return perr.ExitOK
}
