package logutil

import (
	"fmt"
	"io"

	"cloud.google.com/go/compute/metadata"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigureLogger sets up the global logger writing to out. On GCE, logs are
// written as JSON with a severity field, elsewhere in a human readable form.
// An empty level keeps info and above.
func ConfigureLogger(level string, out io.Writer) error {
	return configure(level, metadata.OnGCE(), out)
}

func configure(level string, structured bool, out io.Writer) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("logutil: invalid log level %q: %w", level, err)
		}
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	l := zerolog.New(out).With().Timestamp().Caller().Stack().Logger()
	if structured {
		l = l.Hook(ErrorHook{})
	} else {
		l = l.Output(zerolog.ConsoleWriter{Out: out})
	}
	log.Logger = l.Sample(LevelSampler{Level: lvl})
	return nil
}

// ErrorHook adds the severity field expected by Cloud Logging.
type ErrorHook struct{}

func (h ErrorHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	e.Str("severity", level.String())
}
