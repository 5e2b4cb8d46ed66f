package notify

import (
	"context"
	"time"

	"marquee/internal/orders/txn"
)

// Kind separates customer notifications from operator alerts.
type Kind string

const (
	KindEmail Kind = "email"
	KindAlert Kind = "alert"
)

// Message is the delivery-agnostic payload handed to a Sender.
type Message struct {
	Kind    Kind      `json:"kind"`
	Key     string    `json:"key"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	Subject string    `json:"subject"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Email wraps a customer email keyed by the transaction it belongs to.
func Email(transactionID string, email txn.EmailMessage, at time.Time) Message {
	return Message{
		Kind:    KindEmail,
		Key:     transactionID,
		From:    email.From,
		To:      email.To,
		Subject: email.Subject,
		Text:    email.Text,
		At:      at,
	}
}

// Alert builds an operator alert.
func Alert(key, subject, text string, at time.Time) Message {
	return Message{Kind: KindAlert, Key: key, Subject: subject, Text: text, At: at}
}

// Sender delivers messages. Delivery is fire-and-forget from the caller's
// point of view; an error means the message was not accepted.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
