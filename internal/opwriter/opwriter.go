package opwriter

import (
	"errors"
	"fmt"
	"io"

	"github.com/getsentry/opstractor/internal/optree"
)

const (
	FormatFlamegraph Format = "flamegraph"
	FormatText       Format = "text"
	FormatBinary     Format = "binary"
)

type (
	Format string

	// Emitter receives the nodes of a tree in depth-first order. Emit calls
	// the children methods only for nodes with children. Write errors are
	// accumulated and returned by Flush.
	Emitter interface {
		WriteStart(op *optree.Op)
		WriteProperties(op *optree.Op)
		WriteStartChildren(op *optree.Op)
		WriteChildDelimiter()
		WriteEndChildren(op *optree.Op)
		WriteEnd(op *optree.Op)
		Flush() error
	}

	// Writer serializes a whole tree.
	Writer interface {
		Write(root *optree.Op) error
	}

	writerFunc func(root *optree.Op) error
)

// ErrUnknownFormat is returned when no writer exists for a format.
var ErrUnknownFormat = errors.New("unknown output format")

func (f writerFunc) Write(root *optree.Op) error {
	return f(root)
}

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatFlamegraph, FormatText, FormatBinary}
}

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("opwriter: %w: %q", ErrUnknownFormat, s)
}

// New returns a Writer serializing trees in format f to w. Every call to
// Write produces a complete, independent document.
func New(f Format, w io.Writer) (Writer, error) {
	var newEmitter func(io.Writer) Emitter
	switch f {
	case FormatFlamegraph:
		newEmitter = NewFlamegraphEmitter
	case FormatText:
		newEmitter = NewTextEmitter
	case FormatBinary:
		newEmitter = NewBinaryEmitter
	default:
		return nil, fmt.Errorf("opwriter: %w: %q", ErrUnknownFormat, f)
	}
	return writerFunc(func(root *optree.Op) error {
		return Emit(newEmitter(w), root)
	}), nil
}

// Emit walks root and sends every node to e, then flushes e. The tree is
// not modified.
func Emit(e Emitter, root *optree.Op) error {
	emit(e, root)
	return e.Flush()
}

func emit(e Emitter, op *optree.Op) {
	e.WriteStart(op)
	e.WriteProperties(op)
	children := op.Children()
	if len(children) > 0 {
		e.WriteStartChildren(op)
		for i, child := range children {
			emit(e, child)
			if i < len(children)-1 {
				e.WriteChildDelimiter()
			}
		}
		e.WriteEndChildren(op)
	}
	e.WriteEnd(op)
}
