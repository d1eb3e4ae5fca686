package optree

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/opstractor/internal/errorutil"
)

const (
	ScopeFunction         Scope = 0
	ScopeBackwardFunction Scope = 1
	// ScopeModel is reserved for the synthetic root built over all the
	// distinct call trees of a session.
	ScopeModel Scope = 100
)

type (
	Scope uint8

	// Op is a node of a call tree. Children are owned by their parent, in
	// call order. The parent is a back-reference only used while the tree is
	// built from a call stack.
	Op struct {
		id              uint64
		name            string
		scope           Scope
		parent          *Op
		token           any
		children        []*Op
		invocationCount uint64
		duration        time.Duration
	}
)

var (
	nextID atomic.Uint64

	errDataIntegrityShapeMismatch = fmt.Errorf("optree: %w: merged trees have different shapes", errorutil.ErrDataIntegrity)
)

func (s Scope) String() string {
	switch s {
	case ScopeFunction:
		return "function"
	case ScopeBackwardFunction:
		return "backward_function"
	case ScopeModel:
		return "model"
	}
	return fmt.Sprintf("scope(%d)", uint8(s))
}

// New creates an op and appends it as the last child of parent, if parent is
// non-nil. token is only used to match exits with enters and must hold a
// comparable value.
func New(name string, scope Scope, parent *Op, token any) *Op {
	op := &Op{
		id:     nextID.Add(1),
		name:   name,
		scope:  scope,
		parent: parent,
		token:  token,
	}
	if parent != nil {
		parent.children = append(parent.children, op)
	}
	return op
}

// Aggregate returns a synthetic model root whose children are roots. The
// parent of each root is left untouched.
func Aggregate(name string, roots []*Op) *Op {
	op := New(name, ScopeModel, nil, nil)
	op.children = make([]*Op, len(roots))
	copy(op.children, roots)
	return op
}

func (op *Op) ID() uint64 {
	return op.id
}

func (op *Op) Name() string {
	return op.name
}

func (op *Op) Scope() Scope {
	return op.scope
}

func (op *Op) Parent() *Op {
	return op.parent
}

func (op *Op) Token() any {
	return op.token
}

func (op *Op) Children() []*Op {
	return op.children
}

func (op *Op) InvocationCount() uint64 {
	return op.invocationCount
}

func (op *Op) Duration() time.Duration {
	return op.duration
}

// RecordInvocation folds one completed invocation into the op.
func (op *Op) RecordInvocation(d time.Duration) {
	op.duration += d
	op.invocationCount++
}

// AddInvocations folds count invocations lasting d in total into the op,
// e.g. when a tree is restored from a dump.
func (op *Op) AddInvocations(count uint64, d time.Duration) {
	op.duration += d
	op.invocationCount += count
}

// StructurallyEqual reports whether both trees have the same names and the
// same shape. Scopes, durations, counts and tokens are ignored.
func (op *Op) StructurallyEqual(other *Op) bool {
	if op == nil || other == nil {
		return op == other
	}
	if op == other {
		return true
	}
	if op.name != other.name || len(op.children) != len(other.children) {
		return false
	}
	for i, child := range op.children {
		if !child.StructurallyEqual(other.children[i]) {
			return false
		}
	}
	return true
}

// Merge folds the counts and durations of other into op, node by node. Both
// trees must be structurally equal, otherwise nothing is merged and an error
// is returned.
func (op *Op) Merge(other *Op) error {
	if op == other {
		return nil
	}
	if !op.StructurallyEqual(other) {
		return fmt.Errorf("%w: %q and %q", errDataIntegrityShapeMismatch, op.Name(), other.Name())
	}
	op.merge(other)
	return nil
}

func (op *Op) merge(other *Op) {
	op.duration += other.duration
	op.invocationCount += other.invocationCount
	for i, child := range op.children {
		child.merge(other.children[i])
	}
}

// Size returns the number of nodes in the tree.
func (op *Op) Size() int {
	var n int
	op.Walk(func(*Op, int) bool {
		n++
		return true
	})
	return n
}

// Walk visits the tree depth-first, parents before children. It stops as
// soon as fn returns false and reports whether the whole tree was visited.
func (op *Op) Walk(fn func(op *Op, depth int) bool) bool {
	return op.walk(fn, 0)
}

func (op *Op) walk(fn func(*Op, int) bool, depth int) bool {
	if !fn(op, depth) {
		return false
	}
	for _, child := range op.children {
		if !child.walk(fn, depth+1) {
			return false
		}
	}
	return true
}
