package telemetry

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook stamps trace_id and span_id on events logged with a span context
// (log.Info().Ctx(ctx)...). Error events also mark the span as failed.
type OTELHook struct{}

func (OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return
	}

	e.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// SetupLogging configures the global logger: console output on stderr, the
// given level, and the OTEL hook. debug overrides level.
func SetupLogging(level string, debug bool) error {
	return setupLogging(os.Stderr, level, debug)
}

func setupLogging(out io.Writer, level string, debug bool) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", level, err)
		}
		lvl = parsed
	}
	if debug {
		lvl = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out}).Hook(OTELHook{})
	return nil
}
