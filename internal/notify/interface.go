package notify

import "context"

// Transport is one delivery channel for rendered digest messages.
type Transport interface {
	Name() string
	Send(ctx context.Context, title, markdown string) error
}
