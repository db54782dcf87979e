package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sony/gobreaker"

	"libraverse/internal/platform/logger"
)

// LogNotifier writes confirmations to the log. Default in development.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.log.Info("notification",
		"kind", msg.Kind,
		"to", msg.UserEmail,
		"book", msg.BookName,
	)
	return nil
}

// SMTPNotifier mails borrow/return confirmations.
type SMTPNotifier struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPNotifier(host string, port int, user, pass, from string) *SMTPNotifier {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPNotifier{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
}

func (n *SMTPNotifier) Send(_ context.Context, msg Message) error {
	var subject, body string
	switch msg.Kind {
	case KindBorrow:
		subject = fmt.Sprintf("You Borrowed %q", msg.BookName)
		body = fmt.Sprintf(
			"Hello %s,\r\n\r\nYou have successfully borrowed %q by %s.\r\nIssued On: %s\r\nReturn By: %s\r\n\r\nHappy reading! Remember to return the book on time.\r\n\r\n- Team Libraverse",
			msg.UserName, msg.BookName, msg.AuthorName,
			msg.IssuedAt.Format("Mon Jan 2 2006"), msg.ReturnAt.Format("Mon Jan 2 2006"),
		)
	case KindReturn:
		subject = fmt.Sprintf("Book Returned: %q", msg.BookName)
		body = fmt.Sprintf(
			"Hi %s,\r\n\r\nThank you for returning %q.\r\nReturned On: %s\r\n\r\nWe hope you enjoyed reading. Feel free to borrow again anytime!\r\n\r\n- Team Libraverse",
			msg.UserName, msg.BookName, msg.ReturnedAt.Format("Mon Jan 2 2006"),
		)
	default:
		return fmt.Errorf("unknown notification kind %q", msg.Kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.UserEmail)
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n", subject)
	b.WriteString(body)

	return smtp.SendMail(n.addr, n.auth, n.from, []string{msg.UserEmail}, []byte(b.String()))
}

// BreakerNotifier wraps a notifier in a circuit breaker so a dead mail
// server stops being dialed for every committed operation.
type BreakerNotifier struct {
	inner   Notifier
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerNotifier(inner Notifier) *BreakerNotifier {
	return &BreakerNotifier{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "notifier",
		}),
	}
}

func (n *BreakerNotifier) Send(ctx context.Context, msg Message) error {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.inner.Send(ctx, msg)
	})
	return err
}
