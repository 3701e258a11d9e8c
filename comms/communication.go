// Package comms holds the domain model of a communication: the aggregate tying
// a definition identifier to per-channel contexts and a recipient list.
package comms

// Communication is the unit of dispatch: a definition identifier naming the
// declared shape of the message, one context per channel, and the recipients.
//
// There is exactly one recipient list per communication; channel contexts
// mirror it. AddRecipients keeps the mirrors in sync.
type Communication struct {
	definitionID string
	contexts     *ContextSet
	recipients   []*Recipient
}

func NewCommunication(definitionID string, contexts *ContextSet) *Communication {
	if contexts == nil {
		contexts = NewContextSet()
	}
	return &Communication{
		definitionID: definitionID,
		contexts:     contexts,
	}
}

func (c *Communication) DefinitionID() string {
	return c.definitionID
}

func (c *Communication) Contexts() *ContextSet {
	return c.contexts
}

func (c *Communication) Recipients() []*Recipient {
	return c.recipients
}

// AddRecipients appends recipients to the aggregate list and pushes each one
// into the recipient list of every channel context whose channel the
// recipient participates in.
func (c *Communication) AddRecipients(recipients ...*Recipient) *Communication {
	for _, r := range recipients {
		c.recipients = append(c.recipients, r)
		for _, ch := range r.Channels() {
			ctx := c.contexts.Context(ch)
			if ctx == nil {
				continue
			}
			addr, ok := r.AddressFor(ch)
			if !ok {
				continue
			}
			ctx.AddRecipient(addr)
		}
	}
	return c
}

// SetFrom propagates the sender address to every channel context uniformly.
func (c *Communication) SetFrom(addr Address) *Communication {
	c.contexts.SetFrom(addr)
	return c
}
