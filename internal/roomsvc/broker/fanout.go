package broker

import (
	"context"

	"github.com/avvvet/bingo-rooms/internal/comm"
)

type Sink interface {
	Notify(ctx context.Context, e comm.RoomEvent)
}

// Fanout hands each event to every sink in order.
type Fanout []Sink

func NewFanout(sinks ...Sink) Fanout {
	out := make(Fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f Fanout) Notify(ctx context.Context, e comm.RoomEvent) {
	for _, s := range f {
		s.Notify(ctx, e)
	}
}
