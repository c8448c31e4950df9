package ws

import "github.com/ravigummadi/smallbets.live/internal/engine"

// Fanout delivers each event to every publisher in order.
type Fanout []engine.Publisher

func (f Fanout) Publish(room, event string, payload any) {
	for _, p := range f {
		p.Publish(room, event, payload)
	}
}
