package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	kit "gridintake/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"panic":   zerolog.PanicLevel,
		"":        zerolog.DebugLevel,
		"chatty":  zerolog.DebugLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

// always emits regardless of the sampler Init installed
func unsampled(l *Logger) *Logger {
	ll := l.Sample(&zerolog.BasicSampler{N: 1})
	return &ll
}

func TestInit_RootNamedAndJobContext(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		Level:        "info",
		Format:       "console",
		Service:      "gridintake-worker",
		Component:    "root",
		Writer:       &buf,
		WithCaller:   true,
		SampleEvery:  2,
		StaticFields: map[string]string{"build": "test"},
	})

	unsampled(Get()).Info().Msg("worker started")
	unsampled(Named("download")).Info().Msg("catalog hit")
	ctx := WithRun(WithJob(context.Background(), 42, "worker-1a2b3c4d"), "run-abc")
	unsampled(C(ctx)).Info().Msg("import spawned")
	unsampled(Get()).Debug().Msg("below level")

	out := buf.String()
	for _, want := range []string{
		"worker started", "catalog hit", "import spawned",
		"service=", "gridintake-worker", "build=", "component=", "download",
		"job_id=", "42", "worker_id=", "worker-1a2b3c4d", "run_id=", "run-abc",
	} {
		kit.MustContain(t, out, want)
	}
	if strings.Contains(out, "below level") {
		t.Fatalf("debug line leaked past info level")
	}
}

func TestEnrich_CopiesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithRun(WithJob(context.Background(), 9, "worker-x"), "run-9")
	l := Enrich(ctx, base)
	l.Info().Msg("chunk committed")
	kit.MustContain(t, buf.String(), `"job_id":9`)
	kit.MustContain(t, buf.String(), `"worker_id":"worker-x"`)
	kit.MustContain(t, buf.String(), `"run_id":"run-9"`)

	buf.Reset()
	l = Enrich(context.Background(), base)
	l.Info().Msg("bare")
	if strings.Contains(buf.String(), "job_id") {
		t.Fatalf("empty context added fields: %s", buf.String())
	}
}

func TestFromEnv_Independently(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_SERVICE", "svc-b")
	t.Setenv("LOG_COMPONENT", "comp-b")
	t.Setenv("LOG_CALLER", "true")
	t.Setenv("LOG_SAMPLE_EVERY", "5")

	opt := FromEnv()
	if strings.ToLower(opt.Level) != "warn" {
		t.Fatalf("FromEnv Level = %q, want warn", opt.Level)
	}
	if opt.Format != "json" || opt.Service != "svc-b" || opt.Component != "comp-b" {
		t.Fatalf("FromEnv fields mismatch: %+v", opt)
	}
	if !opt.WithCaller || opt.SampleEvery != 5 {
		t.Fatalf("FromEnv caller/sample mismatch: %+v", opt)
	}
}

func TestFromEnv_Fallbacks(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_CALLER", "nope")
	t.Setenv("LOG_SAMPLE_EVERY", "-3")
	opt := FromEnv()
	if opt.Level != "debug" || opt.Format != "console" || opt.WithCaller || opt.SampleEvery != 0 {
		t.Fatalf("fallbacks = %+v", opt)
	}
	t.Setenv("LOG_CALLER", "ON")
	if !FromEnv().WithCaller {
		t.Fatal("LOG_CALLER=ON should enable caller")
	}
}

func TestWithJob_NoValues(t *testing.T) {
	ctx := WithRun(WithJob(context.Background(), 0, ""), "")
	if ctx != context.Background() {
		t.Fatalf("empty values should not wrap ctx")
	}
	v := C(ctx).Sample(&zerolog.BasicSampler{N: 1})
	p := &v
	p.Debug().Msg("no-fields")
}
