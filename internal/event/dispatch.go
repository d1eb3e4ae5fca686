package event

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/getsentry/opstractor/internal/session"
)

const threadQueueSize = 1024

// Dispatch reads every event from src and applies it to s. Each thread is
// traced by its own goroutine and tracer, in the order its events were
// read. The first error stops the dispatch. Invalid or unbalanced events
// abort s, so roots still queued on other threads can't make it converge.
func Dispatch(ctx context.Context, src Source, s *session.Session) error {
	g, ctx := errgroup.WithContext(ctx)
	abort := func(err error) error {
		s.Abort(err)
		return err
	}
	g.Go(func() error {
		threads := make(map[uint64]chan Event)
		defer func() {
			for _, events := range threads {
				close(events)
			}
		}()
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				return abort(err)
			}
			if err := e.Validate(); err != nil {
				return abort(err)
			}
			events, ok := threads[e.Thread]
			if !ok {
				events = make(chan Event, threadQueueSize)
				threads[e.Thread] = events
				thread, tracer := e.Thread, s.NewTracer()
				g.Go(func() error {
					if err := trace(ctx, thread, tracer, events); err != nil && ctx.Err() == nil {
						return abort(err)
					}
					return nil
				})
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	return g.Wait()
}

func trace(ctx context.Context, thread uint64, tracer *session.Tracer, events <-chan Event) error {
	for e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch e.Type {
		case TypeEnter:
			scope, err := ParseScope(e.Scope)
			if err != nil {
				return err
			}
			tracer.OnEnter(e.Name, scope, e.Token)
		case TypeExit:
			if err := tracer.OnExit(time.Duration(e.DurationNS), e.Token); err != nil {
				return fmt.Errorf("event: thread %d: %w", thread, err)
			}
		}
	}
	if depth := tracer.Depth(); depth > 0 {
		log.Warn().Uint64("thread", thread).Int("depth", depth).Msg("event stream ended with calls in progress")
	}
	return nil
}
