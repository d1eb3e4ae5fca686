package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/opstractor/internal/envutil"
	"github.com/getsentry/opstractor/internal/event"
	"github.com/getsentry/opstractor/internal/interrupt"
	"github.com/getsentry/opstractor/internal/logutil"
	"github.com/getsentry/opstractor/internal/opwriter"
	"github.com/getsentry/opstractor/internal/session"
	"github.com/getsentry/opstractor/internal/storageutil"
)

var release string

type environment struct {
	config  ServiceConfig
	sink    *sink
	session *session.Session
}

func newEnvironment(ctx context.Context, cfg ServiceConfig) (*environment, error) {
	e := environment{config: cfg}
	var err error
	e.sink, err = openSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e.session, err = session.New(session.Config{
		Threshold: cfg.Threshold,
		Filter:    session.RejectNames(cfg.Ignore...),
		Format:    opwriter.Format(cfg.Format),
		Output:    e.sink,
		Exit:      e.exit,
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// finish stores the report and flushes pending sentry events.
func (e *environment) finish() error {
	err := e.sink.finish(context.Background(), e.session.Stats())
	if err != nil {
		sentry.CaptureException(err)
		log.Error().Err(err).Str("output", e.sink.location).Msg("can't store report")
	} else {
		log.Info().Str("output", e.sink.location).Msg("report stored")
	}
	sentry.Flush(5 * time.Second)
	return err
}

func (e *environment) exit(code int) {
	if err := e.finish(); err != nil {
		code = 1
	}
	os.Exit(code)
}

func (e *environment) report() {
	if err := e.session.Report(); err != nil {
		sentry.CaptureException(err)
		log.Error().Err(err).Msg("can't write report")
	}
	_ = e.finish()
}

type source interface {
	event.Source
	io.Closer
}

type fileSource struct {
	*event.JSONSource
	io.Closer
}

func (e *environment) openSource() (source, error) {
	switch e.config.Events {
	case kafkaEvents:
		return event.NewKafkaSource(e.config.KafkaBrokers, e.config.KafkaTopic, e.config.KafkaGroupID), nil
	case "", "-":
		return fileSource{JSONSource: event.NewJSONSource(os.Stdin), Closer: nopCloser{}}, nil
	}
	f, err := os.Open(e.config.Events)
	if err != nil {
		return nil, err
	}
	r, err := storageutil.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return fileSource{JSONSource: event.NewJSONSource(r), Closer: f}, nil
}

func fatal(err error, msg string) {
	sentry.CaptureException(err)
	sentry.Flush(5 * time.Second)
	log.Fatal().Err(err).Msg(msg)
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("error loading config")
	}

	err = logutil.ConfigureLogger(envutil.GetEnvOrFallback("LOG_LEVEL", "info"), logOutput(cfg.Output))
	if err != nil {
		log.Fatal().Err(err).Msg("can't configure logger")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          release,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	ctx := context.Background()
	env, err := newEnvironment(ctx, cfg)
	if err != nil {
		fatal(err, "error setting up environment")
	}

	hook := interrupt.Install(env.report, nil)
	defer hook.Uninstall()

	if cfg.StatusAddr != "" {
		handler, err := newStatusHandler(env.session)
		if err != nil {
			fatal(err, "error setting up the status server")
		}
		server := http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			err := server.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				sentry.CaptureException(err)
				log.Err(err).Msg("status server failed")
			}
		}()
	}

	src, err := env.openSource()
	if err != nil {
		fatal(err, "can't open event source")
	}
	defer src.Close()

	log.Info().
		Str("events", cfg.Events).
		Str("output", env.sink.location).
		Float64("threshold", cfg.Threshold).
		Msg("aggregating call trees")

	err = event.Dispatch(ctx, src, env.session)
	if err != nil {
		fatal(err, "error reading events")
	}

	// the events ran out before the call trees converged
	env.report()
}
