package mailer

import "context"

// Message is one outgoing email.
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}
