package opwriter

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/getsentry/opstractor/internal/errorutil"
	"github.com/getsentry/opstractor/internal/optree"
)

// Binary layout of a node, all integers little-endian:
//
//	uint16 tagged handle   handle<<1, low bit set if the name was already written
//	uint16 name length     only when the low bit is not set
//	[]byte name            utf-8
//	uint8  scope
//	uint64 invocation count
//	uint64 duration in nanoseconds
//	uint16 number of children, followed by the children
const maxHandle = 0x7fff

var (
	ErrHandleOverflow   = errors.New("too many distinct op names")
	ErrNameTooLong      = errors.New("op name too long")
	ErrTooManyChildren  = errors.New("too many children")
	errDataIntegrityRef = fmt.Errorf("opwriter: %w: unknown handle", errorutil.ErrDataIntegrity)
)

// BinaryEmitter writes a tree in a compact binary form. Names are interned:
// each distinct name is written once and referenced by handle afterwards.
type BinaryEmitter struct {
	w       *bufio.Writer
	handles map[string]uint16
	err     error
	buf     [8]byte
}

func NewBinaryEmitter(w io.Writer) Emitter {
	return &BinaryEmitter{
		w:       bufio.NewWriter(w),
		handles: make(map[string]uint16),
	}
}

func (e *BinaryEmitter) WriteStart(op *optree.Op) {
	if e.err != nil {
		return
	}
	if h, ok := e.handles[op.Name()]; ok {
		e.putUint16(h<<1 | 1)
		return
	}
	if len(e.handles) >= maxHandle {
		e.err = fmt.Errorf("opwriter: %w: more than %d", ErrHandleOverflow, maxHandle)
		return
	}
	if len(op.Name()) > math.MaxUint16 {
		e.err = fmt.Errorf("opwriter: %w: %d bytes", ErrNameTooLong, len(op.Name()))
		return
	}
	h := uint16(len(e.handles) + 1)
	e.handles[op.Name()] = h
	e.putUint16(h << 1)
	e.putUint16(uint16(len(op.Name())))
	_, _ = e.w.WriteString(op.Name())
}

func (e *BinaryEmitter) WriteProperties(op *optree.Op) {
	if e.err != nil {
		return
	}
	if len(op.Children()) > math.MaxUint16 {
		e.err = fmt.Errorf("opwriter: %w: %q has %d", ErrTooManyChildren, op.Name(), len(op.Children()))
		return
	}
	_ = e.w.WriteByte(byte(op.Scope()))
	e.putUint64(op.InvocationCount())
	e.putUint64(uint64(op.Duration().Nanoseconds()))
	e.putUint16(uint16(len(op.Children())))
}

func (e *BinaryEmitter) WriteStartChildren(*optree.Op) {}
func (e *BinaryEmitter) WriteChildDelimiter()          {}
func (e *BinaryEmitter) WriteEndChildren(*optree.Op)   {}
func (e *BinaryEmitter) WriteEnd(*optree.Op)           {}

func (e *BinaryEmitter) Flush() error {
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

func (e *BinaryEmitter) putUint16(v uint16) {
	binary.LittleEndian.PutUint16(e.buf[:2], v)
	_, _ = e.w.Write(e.buf[:2])
}

func (e *BinaryEmitter) putUint64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[:8], v)
	_, _ = e.w.Write(e.buf[:8])
}

// ReadBinary decodes a tree written by BinaryEmitter. It returns io.EOF if r
// is empty.
func ReadBinary(r io.Reader) (*optree.Op, error) {
	br := binaryReader{
		r:     bufio.NewReader(r),
		names: make(map[uint16]string),
	}
	root, err := br.readOp(nil)
	if err != nil {
		if errors.Is(err, io.EOF) && br.read > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return root, nil
}

type binaryReader struct {
	r     *bufio.Reader
	names map[uint16]string
	read  int
	buf   [8]byte
}

func (br *binaryReader) readOp(parent *optree.Op) (*optree.Op, error) {
	tagged, err := br.readUint16()
	if err != nil {
		return nil, err
	}
	handle := tagged >> 1
	name, ok := br.names[handle]
	if tagged&1 == 1 {
		if !ok {
			return nil, fmt.Errorf("%w: %d", errDataIntegrityRef, handle)
		}
	} else {
		size, err := br.readUint16()
		if err != nil {
			return nil, err
		}
		b := make([]byte, size)
		if err := br.full(b); err != nil {
			return nil, err
		}
		name = string(b)
		br.names[handle] = name
	}
	scope, err := br.r.ReadByte()
	if err != nil {
		return nil, err
	}
	br.read++
	count, err := br.readUint64()
	if err != nil {
		return nil, err
	}
	duration, err := br.readUint64()
	if err != nil {
		return nil, err
	}
	children, err := br.readUint16()
	if err != nil {
		return nil, err
	}

	op := optree.New(name, optree.Scope(scope), parent, nil)
	op.AddInvocations(count, time.Duration(duration))
	for i := 0; i < int(children); i++ {
		if _, err := br.readOp(op); err != nil {
			return nil, err
		}
	}
	return op, nil
}

func (br *binaryReader) full(b []byte) error {
	n, err := io.ReadFull(br.r, b)
	br.read += n
	return err
}

func (br *binaryReader) readUint16() (uint16, error) {
	if err := br.full(br.buf[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(br.buf[:2]), nil
}

func (br *binaryReader) readUint64() (uint64, error) {
	if err := br.full(br.buf[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(br.buf[:8]), nil
}
