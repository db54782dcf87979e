// Package notify delivers borrow/return confirmations. Delivery is
// best-effort: it runs after the authoritative state change commits and
// its failure never affects the committed outcome.
package notify

import (
	"context"
	"time"
)

// Kind distinguishes the confirmation templates.
type Kind string

const (
	KindBorrow Kind = "borrow"
	KindReturn Kind = "return"
)

// Message carries everything a confirmation needs for display.
type Message struct {
	Kind       Kind
	UserName   string
	UserEmail  string
	BookName   string
	AuthorName string
	IssuedAt   time.Time
	ReturnAt   time.Time
	ReturnedAt time.Time
}

// Notifier sends a single confirmation message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Enqueuer hands a message off for asynchronous delivery.
type Enqueuer interface {
	Enqueue(msg Message)
}
