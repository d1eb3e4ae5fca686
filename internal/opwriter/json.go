package opwriter

import (
	"bufio"
	"strconv"
	"unicode/utf8"
)

const hex = "0123456789abcdef"

// jsonWriter holds the JSON primitives shared by the JSON based emitters.
// bufio.Writer keeps the first error and ignores the following writes.
type jsonWriter struct {
	w *bufio.Writer
}

func (j jsonWriter) startObject() { _ = j.w.WriteByte('{') }
func (j jsonWriter) endObject()   { _ = j.w.WriteByte('}') }
func (j jsonWriter) startArray()  { _ = j.w.WriteByte('[') }
func (j jsonWriter) endArray()    { _ = j.w.WriteByte(']') }
func (j jsonWriter) comma()       { _ = j.w.WriteByte(',') }

func (j jsonWriter) property(name string) {
	j.quoted(name)
	_ = j.w.WriteByte(':')
}

func (j jsonWriter) number(v int64) {
	var buf [20]byte
	_, _ = j.w.Write(strconv.AppendInt(buf[:0], v, 10))
}

func (j jsonWriter) quoted(s string) {
	_ = j.w.WriteByte('"')
	writeEscaped(j.w, s)
	_ = j.w.WriteByte('"')
}

// writeEscaped writes s with quotes, backslashes and control characters
// escaped. Bytes that aren't valid UTF-8 are written as \ufffd, the way JSON
// decoders read them. Other bytes are written as is.
func writeEscaped(w *bufio.Writer, s string) {
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				_, _ = w.WriteString(s[start:i])
				_, _ = w.WriteString(`\ufffd`)
				start = i + 1
				continue
			}
			i += size - 1
			continue
		}
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		_, _ = w.WriteString(s[start:i])
		switch c {
		case '"':
			_, _ = w.WriteString(`\"`)
		case '\\':
			_, _ = w.WriteString(`\\`)
		case '\b':
			_, _ = w.WriteString(`\b`)
		case '\f':
			_, _ = w.WriteString(`\f`)
		case '\n':
			_, _ = w.WriteString(`\n`)
		case '\r':
			_, _ = w.WriteString(`\r`)
		case '\t':
			_, _ = w.WriteString(`\t`)
		default:
			_, _ = w.WriteString(`\u00`)
			_ = w.WriteByte(hex[c>>4])
			_ = w.WriteByte(hex[c&0xf])
		}
		start = i + 1
	}
	_, _ = w.WriteString(s[start:])
}
