package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pulsewatch/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds the process logger and installs it as the zerolog global.
func Init(cfg *config.Config) *zerolog.Logger {
	l := New(os.Stdout, cfg.Env, cfg.ServiceName)
	log.Logger = l
	return &l
}

// New writes JSON in production and a console layout everywhere else.
func New(out io.Writer, env, service string) zerolog.Logger {
	prod := env == config.EnvProduction

	if prod {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var base zerolog.Logger
	if prod {
		base = zerolog.New(out)
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			PartsOrder: []string{
				"time", "level", "caller", "service", "env", "message", "err",
			},
			FormatLevel: func(i any) string {
				return strings.ToUpper(fmt.Sprintf("[%s]", i))
			},
			FormatCaller: func(caller any) string {
				return fmt.Sprintf("(%s)", caller)
			},
		})
	}

	ctx := base.With().
		Timestamp().
		Str("service", service).
		Str("env", env)

	if !prod {
		ctx = ctx.Caller()
	}

	return ctx.Logger()
}

// Nop is used by tests and by components constructed without a logger.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
