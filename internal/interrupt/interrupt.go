package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// Hook runs a callback on the first SIGINT, then hands the signal back to
// the previous disposition.
type Hook struct {
	callback func()
	fallback func(os.Signal)

	signals chan os.Signal
	done    chan struct{}
	once    sync.Once
}

// Install runs callback on SIGINT, followed by fallback. A nil fallback
// restores the default disposition and raises the signal again, which
// terminates the process.
func Install(callback func(), fallback func(os.Signal)) *Hook {
	if fallback == nil {
		fallback = Reraise
	}
	h := &Hook{
		callback: callback,
		fallback: fallback,
		signals:  make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}
	signal.Notify(h.signals, os.Interrupt)
	go h.wait()
	return h
}

func (h *Hook) wait() {
	select {
	case sig := <-h.signals:
		signal.Stop(h.signals)
		log.Info().Str("signal", sig.String()).Msg("interrupted, writing report")
		h.callback()
		h.fallback(sig)
	case <-h.done:
	}
}

// Uninstall stops listening for SIGINT. It doesn't wait for a callback
// already running.
func (h *Hook) Uninstall() {
	h.once.Do(func() {
		signal.Stop(h.signals)
		close(h.done)
	})
}

// Reraise delivers sig to the process again with its default disposition.
func Reraise(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		os.Exit(1)
	}
	signal.Reset(s)
	if err := unix.Kill(unix.Getpid(), s); err != nil {
		log.Error().Err(err).Msg("can't raise signal")
		os.Exit(1)
	}
}
