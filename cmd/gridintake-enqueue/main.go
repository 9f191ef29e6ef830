package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gridintake/internal/core/version"
	"gridintake/internal/modkit"
	"gridintake/internal/modkit/module"
	"gridintake/internal/platform/config"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/store"
	"gridintake/internal/platform/validate"
	"gridintake/internal/schema"

	qdom "gridintake/internal/services/queue/domain"
	qmod "gridintake/internal/services/queue/module"
)

func main() { os.Exit(run()) }

func run() int {
	var (
		fPayload      = flag.String("payload", "", "job payload JSON, @file to read a file, - for stdin")
		fPriority     = flag.Int("priority", -1, "priority, lower is more urgent (-1 = configured default)")
		fRetries      = flag.Int("max-retries", -1, "retries after the first attempt (-1 = configured default)")
		fDelay        = flag.Duration("delay", 0, "make the job eligible only after this delay")
		fRequeue      = flag.Int64("requeue", 0, "put a failed job back on the queue with tries reset")
		fMigrate      = flag.Bool("migrate", false, "apply the schema before anything else")
		fVersion      = flag.Bool("version", false, "print build info and exit")
		fTimeout      = flag.Duration("timeout", 30*time.Second, "overall deadline")
		fValidateOnly = flag.Bool("validate-only", false, "validate the payload and print its kind without enqueueing")
	)
	flag.Parse()

	if *fVersion {
		fmt.Println(version.Info("gridintake-enqueue").String())
		return perr.ExitOK
	}

	l := logger.Get()

	var (
		payload qdom.Payload
		err     error
	)
	if *fPayload != "" {
		if payload, err = readPayload(*fPayload); err != nil {
			l.Error().Err(err).Msg("payload rejected")
			return perr.ExitCode(err)
		}
		if err := payload.Validate(); err != nil {
			l.Error().Err(err).Msg("payload rejected")
			return perr.ExitCode(err)
		}
		if *fValidateOnly {
			fmt.Println(payload.Kind())
			return perr.ExitOK
		}
	}
	if *fPayload == "" && *fRequeue == 0 && !*fMigrate {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -payload, -requeue or -migrate")
		flag.Usage()
		return perr.ExitPermanent
	}

	ctx, cancel := context.WithTimeout(context.Background(), *fTimeout)
	defer cancel()

	root := config.New()
	st, err := store.Open(ctx, store.ConfigFromEnv("gridintake-enqueue", root.Prefix("SERVICE_PGSQL_")), store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		return perr.ExitRetryable
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if *fMigrate {
		if err := schema.Apply(ctx, st.PG); err != nil {
			l.Error().Err(err).Msg("schema apply failed")
			return perr.ExitCode(err)
		}
		l.Info().Msg("schema applied")
	}

	qm := qmod.Register(modkit.Deps{Cfg: root, PG: st.PG, Log: *l})
	q := module.MustPortsOf[qmod.Ports](qm).Queue

	if *fRequeue > 0 {
		if err := q.Requeue(ctx, *fRequeue); err != nil {
			l.Error().Err(err).Int64("job_id", *fRequeue).Msg("requeue failed")
			return perr.ExitCode(err)
		}
		fmt.Println(*fRequeue)
	}

	if *fPayload == "" {
		return perr.ExitOK
	}
	var opt qdom.EnqueueOptions
	if *fPriority >= 0 {
		opt.Priority = fPriority
	}
	if *fRetries >= 0 {
		opt.MaxRetries = fRetries
	}
	if *fDelay > 0 {
		opt.AvailableAt = time.Now().Add(*fDelay)
	}
	id, err := q.Enqueue(ctx, payload, opt)
	if err != nil {
		if perr.MissingTable(err) {
			l.Error().Err(err).Msg("enqueue failed: jobs table missing, rerun with -migrate")
			return perr.ExitRetryable
		}
		l.Error().Err(err).Msg("enqueue failed")
		return perr.ExitCode(err)
	}
	fmt.Println(id)
	return perr.ExitOK
}

// readPayload strictly decodes the payload from an inline document, a file or stdin
func readPayload(arg string) (qdom.Payload, error) {
	var r io.Reader
	switch {
	case arg == "-":
		r = os.Stdin
	case strings.HasPrefix(arg, "@"):
		f, err := os.Open(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return qdom.Payload{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "open payload file")
		}
		defer f.Close()
		r = f
	default:
		r = strings.NewReader(arg)
	}
	return validate.DecodeJSON[qdom.Payload](r)
}
