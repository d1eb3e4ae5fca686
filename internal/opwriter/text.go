package opwriter

import (
	"bufio"
	"io"

	"github.com/getsentry/opstractor/internal/optree"
)

// TextEmitter writes the shape of a tree in a compact notation, e.g.
// "A"->{"B""C"->{"D"}}. Durations are not written.
type TextEmitter struct {
	jsonWriter
}

func NewTextEmitter(w io.Writer) Emitter {
	return &TextEmitter{jsonWriter{bufio.NewWriter(w)}}
}

func (e *TextEmitter) WriteStart(*optree.Op) {}

func (e *TextEmitter) WriteProperties(op *optree.Op) {
	e.quoted(op.Name())
}

func (e *TextEmitter) WriteStartChildren(*optree.Op) {
	_, _ = e.w.WriteString("->{")
}

func (e *TextEmitter) WriteChildDelimiter() {}

func (e *TextEmitter) WriteEndChildren(*optree.Op) {
	_ = e.w.WriteByte('}')
}

func (e *TextEmitter) WriteEnd(*optree.Op) {}

func (e *TextEmitter) Flush() error {
	return e.w.Flush()
}
