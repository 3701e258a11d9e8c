package comms

import "fmt"

// Channel names supported across the system. A ChannelDefinition, a channel
// context, and a notification factory are keyed by these values.
const (
	ChannelEmail  = "email"
	ChannelSMS    = "sms"
	ChannelMobile = "mobile"
)

// Address identifies a delivery endpoint on a channel: an email address, a
// phone number in E.164 form, or a push token. Mirrors net/mail.Address so
// email handling can hand the value straight to an SMTP client.
type Address struct {
	Name    string
	Address string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

// Empty reports whether the address carries no endpoint.
func (a Address) Empty() bool {
	return a.Address == ""
}
