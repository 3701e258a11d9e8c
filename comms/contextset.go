package comms

// ContextSet holds one ChannelContext per channel a communication uses.
// Broadcast setters iterate the typed collection and apply to every context
// that carries the relevant capability; there is no reflective forwarding.
type ContextSet struct {
	contexts map[string]ChannelContext
	order    []string
}

func NewContextSet(contexts ...ChannelContext) *ContextSet {
	s := &ContextSet{contexts: make(map[string]ChannelContext, len(contexts))}
	for _, c := range contexts {
		s.Add(c)
	}
	return s
}

// Add registers a context, replacing any previous context for its channel.
func (s *ContextSet) Add(c ChannelContext) {
	ch := c.Channel()
	if _, ok := s.contexts[ch]; !ok {
		s.order = append(s.order, ch)
	}
	s.contexts[ch] = c
}

// Context returns the context for the channel, or nil when the communication
// does not use it.
func (s *ContextSet) Context(channel string) ChannelContext {
	return s.contexts[channel]
}

// Channels returns the channel names in insertion order.
func (s *ContextSet) Channels() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Each calls fn for every context in insertion order.
func (s *ContextSet) Each(fn func(ChannelContext)) {
	for _, ch := range s.order {
		fn(s.contexts[ch])
	}
}

// SetFrom applies the sender to every context that carries a from-address.
// Channel-specific overrides go through the channel's own context.
func (s *ContextSet) SetFrom(addr Address) {
	s.Each(func(c ChannelContext) {
		if fc, ok := c.(FromCarrier); ok {
			fc.SetFrom(addr)
		}
	})
}

// SetSubject applies the subject to every context that carries one.
func (s *ContextSet) SetSubject(subject string) {
	s.Each(func(c ChannelContext) {
		if sc, ok := c.(SubjectCarrier); ok {
			sc.SetSubject(subject)
		}
	})
}

// AddBodyContext adds a body value to every context.
func (s *ContextSet) AddBodyContext(name string, value any) {
	s.Each(func(c ChannelContext) {
		c.AddBodyContext(name, value)
	})
}

// SetBodyContext replaces the body context of every context.
func (s *ContextSet) SetBodyContext(m map[string]any) {
	s.Each(func(c ChannelContext) {
		c.SetBodyContext(m)
	})
}

// AddSubjectContext adds a subject value to every context.
func (s *ContextSet) AddSubjectContext(name string, value any) {
	s.Each(func(c ChannelContext) {
		c.AddSubjectContext(name, value)
	})
}
