package comms

// ChannelContext is the per-channel payload of a communication: who receives
// it on that channel and the data the channel's templates render.
//
// Channel-specific abilities (subjects, from-addresses, template references)
// are modeled as capability interfaces below and checked with type assertions
// by the dispatcher, so a context that doesn't support an ability is skipped
// explicitly rather than failing.
type ChannelContext interface {
	Channel() string

	Recipients() []Address
	AddRecipient(Address)
	SetRecipients([]Address)

	BodyContext() map[string]any
	SetBodyContext(map[string]any)
	AddBodyContext(name string, value any)

	SubjectContext() map[string]any
	SetSubjectContext(map[string]any)
	AddSubjectContext(name string, value any)
}

// SubjectCarrier is satisfied by contexts whose channel has a subject line.
type SubjectCarrier interface {
	Subject() string
	SetSubject(string)
}

// FromCarrier is satisfied by contexts whose channel has a sender address.
type FromCarrier interface {
	From() *Address
	SetFrom(Address)
}

// HTMLTemplateCarrier is satisfied by contexts that render an HTML body.
type HTMLTemplateCarrier interface {
	HTMLTemplate() string
	SetHTMLTemplate(string)
}

// TextTemplateCarrier is satisfied by contexts that render a plaintext body.
type TextTemplateCarrier interface {
	TextTemplate() string
	SetTextTemplate(string)
}

// baseContext holds the state every channel context shares.
type baseContext struct {
	recipients     []Address
	bodyContext    map[string]any
	subjectContext map[string]any
}

func (c *baseContext) Recipients() []Address {
	return c.recipients
}

func (c *baseContext) AddRecipient(addr Address) {
	c.recipients = append(c.recipients, addr)
}

func (c *baseContext) SetRecipients(addrs []Address) {
	c.recipients = addrs
}

// BodyContext is a pure read: fan-out renders the same context concurrently,
// so the getter must not write the field. A nil map renders and validates as
// an empty object.
func (c *baseContext) BodyContext() map[string]any {
	return c.bodyContext
}

func (c *baseContext) SetBodyContext(m map[string]any) {
	c.bodyContext = m
}

func (c *baseContext) AddBodyContext(name string, value any) {
	if c.bodyContext == nil {
		c.bodyContext = map[string]any{}
	}
	c.bodyContext[name] = value
}

// SubjectContext is a pure read, for the same reason as BodyContext.
func (c *baseContext) SubjectContext() map[string]any {
	return c.subjectContext
}

func (c *baseContext) SetSubjectContext(m map[string]any) {
	c.subjectContext = m
}

func (c *baseContext) AddSubjectContext(name string, value any) {
	if c.subjectContext == nil {
		c.subjectContext = map[string]any{}
	}
	c.subjectContext[name] = value
}

// EmailContext carries the payload for the email channel.
type EmailContext struct {
	baseContext

	from         *Address
	replyTo      []Address
	cc           []Address
	bcc          []Address
	subject      string
	htmlTemplate string
	textTemplate string
}

func NewEmailContext() *EmailContext {
	return &EmailContext{}
}

func (*EmailContext) Channel() string { return ChannelEmail }

func (c *EmailContext) From() *Address { return c.from }

func (c *EmailContext) SetFrom(addr Address) { c.from = &addr }

// ReplyTo falls back to the from-address when no explicit reply-to is set.
func (c *EmailContext) ReplyTo() []Address {
	if len(c.replyTo) == 0 {
		if c.from != nil {
			return []Address{*c.from}
		}
		return nil
	}
	return c.replyTo
}

func (c *EmailContext) SetReplyTo(addrs []Address) { c.replyTo = addrs }

func (c *EmailContext) CC() []Address { return c.cc }

func (c *EmailContext) SetCC(addrs []Address) { c.cc = addrs }

func (c *EmailContext) BCC() []Address { return c.bcc }

func (c *EmailContext) SetBCC(addrs []Address) { c.bcc = addrs }

func (c *EmailContext) Subject() string { return c.subject }

func (c *EmailContext) SetSubject(subject string) { c.subject = subject }

func (c *EmailContext) HTMLTemplate() string { return c.htmlTemplate }

func (c *EmailContext) SetHTMLTemplate(name string) { c.htmlTemplate = name }

func (c *EmailContext) TextTemplate() string { return c.textTemplate }

func (c *EmailContext) SetTextTemplate(name string) { c.textTemplate = name }

// SMSContext carries the payload for the sms channel. SMS has no subject and
// no sender identity the caller controls, only a text body.
type SMSContext struct {
	baseContext

	textTemplate string
}

func NewSMSContext() *SMSContext {
	return &SMSContext{}
}

func (*SMSContext) Channel() string { return ChannelSMS }

func (c *SMSContext) TextTemplate() string { return c.textTemplate }

func (c *SMSContext) SetTextTemplate(name string) { c.textTemplate = name }

// MobileContext carries the payload for the mobile push channel. Priority and
// the auth requirement are bound from the channel definition during dispatch.
type MobileContext struct {
	baseContext

	subject      string
	textTemplate string
	priority     int
	requiresAuth bool
	data         map[string]string
}

func NewMobileContext() *MobileContext {
	return &MobileContext{}
}

func (*MobileContext) Channel() string { return ChannelMobile }

func (c *MobileContext) Subject() string { return c.subject }

func (c *MobileContext) SetSubject(subject string) { c.subject = subject }

func (c *MobileContext) TextTemplate() string { return c.textTemplate }

func (c *MobileContext) SetTextTemplate(name string) { c.textTemplate = name }

func (c *MobileContext) Priority() int { return c.priority }

func (c *MobileContext) SetPriority(p int) { c.priority = p }

func (c *MobileContext) RequiresAuth() bool { return c.requiresAuth }

func (c *MobileContext) SetRequiresAuth(v bool) { c.requiresAuth = v }

func (c *MobileContext) Data() map[string]string { return c.data }

func (c *MobileContext) SetData(data map[string]string) { c.data = data }
