package gateway

import (
	"fmt"
	"io"
	"sync"

	"github.com/cwhitfield/fablecore/internal/game"
)

// Console renders messages to a terminal. Streaming frames print as they
// arrive; the closing frame of a stream only finishes the line instead of
// repeating the text it already printed.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	streaming string // message id currently being typed out
}

var _ Sink = (*Console)(nil)

// NewConsole creates a console sink over w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Deliver implements Sink.
func (c *Console) Deliver(msg game.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case msg.Typing && msg.Speaker == game.SpeakerSystem:
		// Lock/unlock notices; not for display.
	case msg.Typing:
		c.streaming = msg.ID
		fmt.Fprint(c.w, msg.Content)
	case msg.ID != "" && msg.ID == c.streaming:
		c.streaming = ""
		fmt.Fprintln(c.w)
	default:
		prefix := ""
		if msg.Speaker == game.SpeakerError || msg.Speaker == game.SpeakerSystem {
			prefix = "[" + msg.Speaker + "] "
		}
		fmt.Fprintln(c.w, prefix+msg.Content)
	}
}
