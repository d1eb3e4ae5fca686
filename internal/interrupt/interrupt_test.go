package interrupt

import (
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestInstall(t *testing.T) {
	var calls []string
	done := make(chan os.Signal, 1)
	h := Install(func() {
		calls = append(calls, "callback")
	}, func(sig os.Signal) {
		calls = append(calls, "fallback")
		done <- sig
	})
	defer h.Uninstall()

	if err := unix.Kill(unix.Getpid(), unix.SIGINT); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case sig := <-done:
		if sig != os.Interrupt {
			t.Fatalf("expected os.Interrupt, got %v", sig)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hook didn't run")
	}
	if len(calls) != 2 || calls[0] != "callback" || calls[1] != "fallback" {
		t.Fatalf("expected callback then fallback, got %v", calls)
	}
}

func TestUninstall(t *testing.T) {
	h := Install(func() {
		t.Error("callback should not run")
	}, func(os.Signal) {
		t.Error("fallback should not run")
	})
	h.Uninstall()
	h.Uninstall()
	select {
	case <-h.done:
	default:
		t.Fatal("expected the hook to stop waiting")
	}
}
