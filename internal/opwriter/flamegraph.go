package opwriter

import (
	"bufio"
	"io"

	"github.com/getsentry/opstractor/internal/optree"
)

// FlamegraphEmitter writes a tree as nested flamegraph JSON objects:
//
//	{"name":"model","value":0,"children":[{"name":"A","value":40}]}
//
// The value is the cumulative duration of the node in nanoseconds.
type FlamegraphEmitter struct {
	jsonWriter
}

func NewFlamegraphEmitter(w io.Writer) Emitter {
	return &FlamegraphEmitter{jsonWriter{bufio.NewWriter(w)}}
}

func (e *FlamegraphEmitter) WriteStart(*optree.Op) {
	e.startObject()
}

func (e *FlamegraphEmitter) WriteProperties(op *optree.Op) {
	e.property("name")
	e.quoted(op.Name())
	e.comma()
	e.property("value")
	e.number(op.Duration().Nanoseconds())
}

func (e *FlamegraphEmitter) WriteStartChildren(*optree.Op) {
	e.comma()
	e.property("children")
	e.startArray()
}

func (e *FlamegraphEmitter) WriteChildDelimiter() {
	e.comma()
}

func (e *FlamegraphEmitter) WriteEndChildren(*optree.Op) {
	e.endArray()
}

func (e *FlamegraphEmitter) WriteEnd(*optree.Op) {
	e.endObject()
}

func (e *FlamegraphEmitter) Flush() error {
	return e.w.Flush()
}
