package notify

import (
	"context"
	"encoding/json"
	"errors"
)

// Broadcaster pushes raw messages to connected clients.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// BroadcastSender forwards messages as JSON to a Broadcaster.
type BroadcastSender struct {
	broadcaster Broadcaster
}

func NewBroadcastSender(b Broadcaster) *BroadcastSender {
	return &BroadcastSender{broadcaster: b}
}

func (s *BroadcastSender) Send(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.broadcaster.Broadcast(data)
	return nil
}

// Fanout delivers each message to every sender. All senders are tried; the
// errors are joined.
type Fanout struct {
	senders []Sender
}

// NewFanout skips nil senders.
func NewFanout(senders ...Sender) *Fanout {
	f := &Fanout{}
	for _, s := range senders {
		if s != nil {
			f.senders = append(f.senders, s)
		}
	}
	return f
}

func (f *Fanout) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range f.senders {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
