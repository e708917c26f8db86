package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger. In development mode it
// writes human-readable console output; otherwise JSON to stdout.
func InitLogger(serviceName, env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Str("service", serviceName).
			Logger()
		return
	}

	log.Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}
