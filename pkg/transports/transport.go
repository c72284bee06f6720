package transports

import "context"

// Transport is the network boundary that feeds stream messages to the
// dispatcher and serves the call webhooks. Implementations own their
// own listener lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// ReadyReporter exposes readiness metadata (e.g. webhook URLs) for
// informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
