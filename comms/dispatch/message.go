package dispatch

import (
	"github.com/commsd/commsd/comms"
)

// Message is a rendered, sendable notification. Concrete kinds are one per
// channel; the Notifier routes on Channel().
type Message interface {
	Channel() string
}

// EmailMessage is a rendered email with its headers resolved.
type EmailMessage struct {
	From     comms.Address
	To       []comms.Address
	ReplyTo  []comms.Address
	CC       []comms.Address
	BCC      []comms.Address
	Subject  string
	HTMLBody string
	TextBody string
}

func (*EmailMessage) Channel() string { return comms.ChannelEmail }

// SMSMessage is a rendered text message.
type SMSMessage struct {
	To       []comms.Address
	SenderID string
	Body     string
}

func (*SMSMessage) Channel() string { return comms.ChannelSMS }

// PushMessage is a rendered mobile push notification.
type PushMessage struct {
	To           []comms.Address
	Title        string
	Body         string
	Priority     int
	RequiresAuth bool
	Data         map[string]string
}

func (*PushMessage) Channel() string { return comms.ChannelMobile }
