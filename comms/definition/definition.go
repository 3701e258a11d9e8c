// Package definition models communication definitions: the declared shape of
// each communication type, one entry per supported channel, each carrying a
// template reference and two JSON schemas (body context, subject context).
package definition

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/xerrors"

	"github.com/commsd/commsd/comms"
)

// ChannelDefinition is one channel's entry in a communication definition.
// The concrete kinds are a closed set (email, sms, mobile); the store's
// decoder dispatches on the channel column and fails on anything else.
type ChannelDefinition interface {
	Channel() string
	Template() string
	ContextSchema() json.RawMessage
	SubjectSchema() json.RawMessage

	// ValidateContext checks a body context against the context schema and
	// returns an *InvalidContextError on failure.
	ValidateContext(context map[string]any) error
	// ValidateSubject checks a subject document against the subject schema
	// and returns an *InvalidSubjectError on failure.
	ValidateSubject(subject map[string]any) error
}

// channelDefinition is the state shared by every channel kind.
type channelDefinition struct {
	channel       string
	template      string
	contextSchema json.RawMessage
	subjectSchema json.RawMessage
}

func (d *channelDefinition) Channel() string {
	return d.channel
}

func (d *channelDefinition) Template() string {
	return d.template
}

func (d *channelDefinition) ContextSchema() json.RawMessage {
	return d.contextSchema
}

func (d *channelDefinition) SubjectSchema() json.RawMessage {
	return d.subjectSchema
}

func (d *channelDefinition) ValidateContext(context map[string]any) error {
	violations, err := validate(d.contextSchema, context)
	if err != nil {
		return &InvalidSchemaError{Channel: d.channel, Which: "context", Err: err}
	}
	if len(violations) > 0 {
		return &InvalidContextError{Channel: d.channel, Violations: violations}
	}
	return nil
}

func (d *channelDefinition) ValidateSubject(subject map[string]any) error {
	violations, err := validate(d.subjectSchema, subject)
	if err != nil {
		return &InvalidSchemaError{Channel: d.channel, Which: "subject", Err: err}
	}
	if len(violations) > 0 {
		return &InvalidSubjectError{Channel: d.channel, Violations: violations}
	}
	return nil
}

// checkSchemas compiles both schemas so that malformed schema documents are
// caller-visible at save time rather than at first dispatch.
func (d *channelDefinition) checkSchemas() error {
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(d.contextSchema)); err != nil {
		return &InvalidSchemaError{Channel: d.channel, Which: "context", Err: err}
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(d.subjectSchema)); err != nil {
		return &InvalidSchemaError{Channel: d.channel, Which: "subject", Err: err}
	}
	return nil
}

func validate(schema json.RawMessage, instance map[string]any) ([]Violation, error) {
	if instance == nil {
		instance = map[string]any{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(instance))
	if err != nil {
		return nil, xerrors.Errorf("evaluate schema: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	violations := make([]Violation, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		violations = append(violations, Violation{
			Field:   resultErr.Field(),
			Message: resultErr.Description(),
		})
	}
	return violations, nil
}

// EmailChannelDefinition declares the email channel of a communication.
// FromAddress, when set, is bound onto the email context during dispatch as
// the default sender.
type EmailChannelDefinition struct {
	channelDefinition

	FromAddress string
	ReplyTo     string
}

func NewEmailChannelDefinition(template string, contextSchema, subjectSchema json.RawMessage, fromAddress, replyTo string) *EmailChannelDefinition {
	return &EmailChannelDefinition{
		channelDefinition: channelDefinition{
			channel:       comms.ChannelEmail,
			template:      template,
			contextSchema: contextSchema,
			subjectSchema: subjectSchema,
		},
		FromAddress: fromAddress,
		ReplyTo:     replyTo,
	}
}

// SMSChannelDefinition declares the sms channel of a communication.
// SenderID is the alphanumeric or short-code sender presented to carriers.
type SMSChannelDefinition struct {
	channelDefinition

	SenderID string
}

func NewSMSChannelDefinition(template string, contextSchema, subjectSchema json.RawMessage, senderID string) *SMSChannelDefinition {
	return &SMSChannelDefinition{
		channelDefinition: channelDefinition{
			channel:       comms.ChannelSMS,
			template:      template,
			contextSchema: contextSchema,
			subjectSchema: subjectSchema,
		},
		SenderID: senderID,
	}
}

// MobileChannelDefinition declares the mobile push channel of a communication.
type MobileChannelDefinition struct {
	channelDefinition

	Priority     int
	RequiresAuth bool
}

func NewMobileChannelDefinition(template string, contextSchema, subjectSchema json.RawMessage, priority int, requiresAuth bool) *MobileChannelDefinition {
	return &MobileChannelDefinition{
		channelDefinition: channelDefinition{
			channel:       comms.ChannelMobile,
			template:      template,
			contextSchema: contextSchema,
			subjectSchema: subjectSchema,
		},
		Priority:     priority,
		RequiresAuth: requiresAuth,
	}
}

// CommunicationDefinition declares one logical communication type: a unique
// identifier, a human label, and at most one channel definition per channel.
type CommunicationDefinition struct {
	Identifier string
	Name       string

	channels map[string]ChannelDefinition
	order    []string
}

func NewCommunicationDefinition(identifier, name string) *CommunicationDefinition {
	return &CommunicationDefinition{
		Identifier: identifier,
		Name:       name,
		channels:   map[string]ChannelDefinition{},
	}
}

// AddChannelDefinition registers a channel definition, replacing any previous
// entry for the same channel.
func (d *CommunicationDefinition) AddChannelDefinition(cd ChannelDefinition) *CommunicationDefinition {
	ch := cd.Channel()
	if _, ok := d.channels[ch]; !ok {
		d.order = append(d.order, ch)
	}
	d.channels[ch] = cd
	return d
}

// ChannelDefinition returns the definition for the channel, or nil when the
// communication type does not support it.
func (d *CommunicationDefinition) ChannelDefinition(channel string) ChannelDefinition {
	return d.channels[channel]
}

// ChannelDefinitions returns the channel definitions in insertion order.
func (d *CommunicationDefinition) ChannelDefinitions() []ChannelDefinition {
	out := make([]ChannelDefinition, 0, len(d.order))
	for _, ch := range d.order {
		out = append(out, d.channels[ch])
	}
	return out
}
