package event

import (
	"context"
	"errors"
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
)

// JSONSource reads a stream of JSON encoded events, one after the other.
type JSONSource struct {
	dec   *gojson.Decoder
	count int
}

func NewJSONSource(r io.Reader) *JSONSource {
	return &JSONSource{dec: gojson.NewDecoder(r)}
}

func (s *JSONSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	var e Event
	if err := s.dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		return Event{}, fmt.Errorf("event: %w: event %d: %v", ErrInvalidEvent, s.count+1, err)
	}
	s.count++
	return e, nil
}
