package pg

import (
	"context"
	"strings"

	"gridintake/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one statement round trip; Rows is set for COPY
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
	Rows      int64
}

// QueryTracer receives query events from the store adapters
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// maxTracedArgs caps the bind args written per line; the insert-if-absent
// statements can carry a full chunk
const maxTracedArgs = 16

// Tracer logs every statement at info (warn when slow) regardless of the
// root level, tagged with the job and run found on the query context
func Tracer(root logger.Logger) QueryTracer {
	return &zlTracer{log: root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	log := logger.Enrich(ctx, z.log)
	evt := log.Info()
	if ev.Slow {
		evt = log.Warn()
	}
	if ev.Rows > 0 {
		evt = evt.Int64("rows", ev.Rows)
	}
	if args, ok := ev.Args.([]any); ok && len(args) > maxTracedArgs {
		evt = evt.Int("nargs", len(args)).Interface("args", args[:maxTracedArgs])
	} else if ev.Args != nil {
		evt = evt.Interface("args", ev.Args)
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Err(ev.Err).
		Msg("pg query")
}

// compact folds the multi-line SQL literals onto one line
func compact(s string) string { return strings.Join(strings.Fields(s), " ") }
