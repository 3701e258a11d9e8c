package comms

// Recipient is a person (or device) a communication is addressed to. The
// channels a recipient participates in are derived from which identifying
// fields were set: an email address subscribes them to the email channel, a
// phone number to sms, a push token to mobile.
type Recipient struct {
	name      string
	email     string
	phone     string
	pushToken string

	channels []string
}

func NewRecipient() *Recipient {
	return &Recipient{}
}

func (r *Recipient) Name() string {
	return r.name
}

func (r *Recipient) SetName(name string) *Recipient {
	r.name = name
	return r
}

func (r *Recipient) Email() string {
	return r.email
}

func (r *Recipient) SetEmail(email string) *Recipient {
	if email != "" {
		r.email = email
		r.addChannel(ChannelEmail)
	}
	return r
}

func (r *Recipient) Phone() string {
	return r.phone
}

func (r *Recipient) SetPhone(phone string) *Recipient {
	if phone != "" {
		r.phone = phone
		r.addChannel(ChannelSMS)
	}
	return r
}

func (r *Recipient) PushToken() string {
	return r.pushToken
}

func (r *Recipient) SetPushToken(token string) *Recipient {
	if token != "" {
		r.pushToken = token
		r.addChannel(ChannelMobile)
	}
	return r
}

// Channels returns the channels this recipient participates in, in the order
// they were derived.
func (r *Recipient) Channels() []string {
	out := make([]string, len(r.channels))
	copy(out, r.channels)
	return out
}

// AddressFor returns the recipient's delivery address on the given channel.
// The second return is false when the recipient does not participate in it.
func (r *Recipient) AddressFor(channel string) (Address, bool) {
	switch channel {
	case ChannelEmail:
		if r.email == "" {
			return Address{}, false
		}
		return Address{Name: r.name, Address: r.email}, true
	case ChannelSMS:
		if r.phone == "" {
			return Address{}, false
		}
		return Address{Name: r.name, Address: r.phone}, true
	case ChannelMobile:
		if r.pushToken == "" {
			return Address{}, false
		}
		return Address{Name: r.name, Address: r.pushToken}, true
	default:
		return Address{}, false
	}
}

func (r *Recipient) addChannel(channel string) {
	for _, ch := range r.channels {
		if ch == channel {
			return
		}
	}
	r.channels = append(r.channels, channel)
}
