package session

import (
	"fmt"
	"time"

	"github.com/getsentry/opstractor/internal/errorutil"
	"github.com/getsentry/opstractor/internal/optree"
)

// Tracer builds call trees from the enter and exit events of one thread of
// control. A Tracer is not safe for concurrent use; every thread gets its
// own. Completed root trees are handed to the session.
type Tracer struct {
	session *Session
	stack   []*optree.Op
}

// OnEnter pushes a new call on the stack, as a child of the current call.
// token must hold a comparable value and is passed back to OnExit.
func (t *Tracer) OnEnter(name string, scope optree.Scope, token any) {
	var parent *optree.Op
	if n := len(t.stack); n > 0 {
		parent = t.stack[n-1]
	}
	t.stack = append(t.stack, optree.New(name, scope, parent, token))
}

// OnExit completes the call on top of the stack. It fails without changing
// anything if the stack is empty or if token doesn't match the token given to
// OnEnter for that call.
func (t *Tracer) OnExit(d time.Duration, token any) error {
	n := len(t.stack)
	if n == 0 {
		return fmt.Errorf("session: %w: exit with token %v on an empty stack", errorutil.ErrUnbalanced, token)
	}
	op := t.stack[n-1]
	if op.Token() != token {
		return fmt.Errorf(
			"session: %w: call %q expects token %v, got %v",
			errorutil.ErrUnbalanced,
			op.Name(),
			op.Token(),
			token,
		)
	}
	t.stack[n-1] = nil
	t.stack = t.stack[:n-1]
	op.RecordInvocation(d)
	if n == 1 {
		t.session.finalize(op)
	}
	return nil
}

// Depth returns the number of calls in progress.
func (t *Tracer) Depth() int {
	return len(t.stack)
}
