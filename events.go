package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event is a structured lifecycle record emitted by the engine: login edges,
// signout, session restoration, integrity wipes, connection poll outcomes,
// and redirect resolutions. Events replace ambient broadcast signaling;
// interested components subscribe through a [ChannelSink].
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	Email     string            `json:"email,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	GroupID   string            `json:"group_id,omitempty"`
	Platform  string            `json:"platform,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives [Event] values from the engine's event dispatcher.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink is a [Sink] that silently discards all events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink is a buffered channel-based [Sink].
type ChannelSink struct {
	events chan Event
}

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink is a [Sink] that writes JSON-encoded events, one per line,
// to an [io.Writer].
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
