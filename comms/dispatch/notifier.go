package dispatch

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/commsd/commsd/comms"
)

// RoutingNotifier fans messages out to per-channel transports. A message for
// a channel without a transport is a configuration error, not a skip: by the
// time a message is rendered, the definition explicitly supports the channel.
type RoutingNotifier struct {
	routes map[string]Notifier
}

func NewRoutingNotifier(routes map[string]Notifier) *RoutingNotifier {
	return &RoutingNotifier{routes: routes}
}

func (n *RoutingNotifier) Send(ctx context.Context, msg Message, recipient *comms.Recipient) error {
	transport, ok := n.routes[msg.Channel()]
	if !ok {
		return xerrors.Errorf("no transport configured for channel %q", msg.Channel())
	}
	return transport.Send(ctx, msg, recipient)
}
