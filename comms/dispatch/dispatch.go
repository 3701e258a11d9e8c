// Package dispatch sends communications: it resolves the communication's
// definition, validates every channel context against the definition's
// schemas, binds templates and sender addresses, and fans out one rendered
// notification per (recipient, channel) pair.
package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"cdr.dev/slog"

	"github.com/commsd/commsd/comms"
	"github.com/commsd/commsd/comms/definition"
)

// DefinitionStore is the read side of the definition store the dispatcher
// needs.
type DefinitionStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*definition.CommunicationDefinition, error)
}

// NotificationFactory renders a channel context into a sendable message.
type NotificationFactory interface {
	Create(ctx context.Context, channelContext comms.ChannelContext) (Message, error)
}

// Notifier is the delivery transport. Implementations are external
// collaborators (SMTP, webhook gateways); the dispatcher only hands them
// rendered messages.
type Notifier interface {
	Send(ctx context.Context, msg Message, recipient *comms.Recipient) error
}

// Options tune a Dispatcher.
type Options struct {
	// Parallelism bounds concurrent (recipient, channel) sends during
	// fan-out. Zero or one means sequential, preserving recipient order and
	// aborting on the first notifier error. When parallel, errors from all
	// units are aggregated and reported together.
	Parallelism int
	// SendTimeout bounds a whole Send call. Zero means no dispatcher-imposed
	// deadline beyond the caller's context.
	SendTimeout time.Duration
}

// Dispatcher orchestrates communication sends.
type Dispatcher struct {
	store     DefinitionStore
	factories map[string]NotificationFactory
	notifier  Notifier
	metrics   *Metrics
	log       slog.Logger

	parallelism int
	sendTimeout time.Duration
}

func New(store DefinitionStore, factories map[string]NotificationFactory, notifier Notifier, metrics *Metrics, log slog.Logger, opts Options) *Dispatcher {
	return &Dispatcher{
		store:       store,
		factories:   factories,
		notifier:    notifier,
		metrics:     metrics,
		log:         log,
		parallelism: opts.Parallelism,
		sendTimeout: opts.SendTimeout,
	}
}

// Send runs the pipeline for one communication: load -> validate -> bind ->
// fan-out. Any error before fan-out means zero notifier calls were made; an
// error during fan-out means an unknown prefix of (recipient, channel) pairs
// was sent, and callers must not assume retry safety unless the transport
// deduplicates.
func (d *Dispatcher) Send(ctx context.Context, c *comms.Communication) error {
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	def, err := d.store.FindByIdentifier(ctx, c.DefinitionID())
	if err != nil {
		if definition.IsNotFound(err) {
			return &DefinitionNotFoundError{Identifier: c.DefinitionID()}
		}
		return xerrors.Errorf("load definition %q: %w", c.DefinitionID(), err)
	}

	if err := d.validate(c, def); err != nil {
		d.metrics.recordValidationFailure(c.DefinitionID())
		return err
	}

	d.bind(c, def)

	start := time.Now()
	err = d.fanOut(ctx, c, def)
	d.metrics.recordDispatchDuration(c.DefinitionID(), time.Since(start))
	return err
}

// validate checks every channel definition's schemas against the matching
// channel context. Channels absent from the communication's context map are
// skipped. Any failure aborts the whole send; there are no partial channel
// sends on validation failure.
func (d *Dispatcher) validate(c *comms.Communication, def *definition.CommunicationDefinition) error {
	for _, cd := range def.ChannelDefinitions() {
		cc := c.Contexts().Context(cd.Channel())
		if cc == nil {
			continue
		}

		if err := cd.ValidateContext(cc.BodyContext()); err != nil {
			return err
		}

		// Contexts without a subject (e.g. sms) skip subject validation;
		// that is a capability gap, not an error.
		sc, ok := cc.(comms.SubjectCarrier)
		if !ok {
			continue
		}
		if err := cd.ValidateSubject(map[string]any{"subject": sc.Subject()}); err != nil {
			return err
		}
	}
	return nil
}

// bind applies each channel definition onto its context: the template
// reference (html vs text inferred from the reference's suffix), the default
// from-address for channel kinds that carry one, and mobile delivery
// attributes. Contexts lacking a capability are skipped via type assertion.
func (d *Dispatcher) bind(c *comms.Communication, def *definition.CommunicationDefinition) {
	for _, cd := range def.ChannelDefinitions() {
		cc := c.Contexts().Context(cd.Channel())
		if cc == nil {
			continue
		}

		name := cd.Template()
		switch templateKind(name) {
		case "text":
			if tc, ok := cc.(comms.TextTemplateCarrier); ok {
				tc.SetTextTemplate(name)
			}
		default:
			if tc, ok := cc.(comms.HTMLTemplateCarrier); ok {
				tc.SetHTMLTemplate(name)
			}
		}

		switch kind := cd.(type) {
		case *definition.EmailChannelDefinition:
			// Reply-to binds before the sender default: ReplyTo() falls back
			// to the from-address, so the emptiness check must run while the
			// context still reflects what the caller set.
			if ec, ok := cc.(*comms.EmailContext); ok && kind.ReplyTo != "" && len(ec.ReplyTo()) == 0 {
				ec.SetReplyTo([]comms.Address{{Address: kind.ReplyTo}})
			}
			// The definition's from-address is a default; an explicit sender
			// set by the caller wins.
			if fc, ok := cc.(comms.FromCarrier); ok && kind.FromAddress != "" && fc.From() == nil {
				fc.SetFrom(comms.Address{Address: kind.FromAddress})
			}
		case *definition.MobileChannelDefinition:
			if mc, ok := cc.(*comms.MobileContext); ok {
				mc.SetPriority(kind.Priority)
				mc.SetRequiresAuth(kind.RequiresAuth)
			}
		}
	}
}

// templateKind infers whether a template reference names a text or html
// body from its file-extension-like suffix, defaulting to html.
func templateKind(name string) string {
	base := name
	if i := strings.LastIndex(base, ":"); i >= 0 {
		base = base[:i]
	}
	if strings.HasSuffix(base, ".text") || strings.HasSuffix(base, ".txt") {
		return "text"
	}
	return "html"
}

type sendUnit struct {
	recipient *comms.Recipient
	channel   string
	context   comms.ChannelContext
}

// fanOut sends one notification per (recipient, channel the recipient
// participates in). A recipient channel the definition does not support, or
// a supported channel the communication has no context for, is skipped, not
// errored; both skips are logged so the policy stays observable.
func (d *Dispatcher) fanOut(ctx context.Context, c *comms.Communication, def *definition.CommunicationDefinition) error {
	var units []sendUnit
	for _, r := range c.Recipients() {
		for _, ch := range r.Channels() {
			if def.ChannelDefinition(ch) == nil {
				d.log.Debug(ctx, "skipping recipient channel not in definition",
					slog.F("definition", def.Identifier), slog.F("channel", ch))
				continue
			}
			cc := c.Contexts().Context(ch)
			if cc == nil {
				d.log.Debug(ctx, "skipping channel without context",
					slog.F("definition", def.Identifier), slog.F("channel", ch))
				continue
			}
			units = append(units, sendUnit{recipient: r, channel: ch, context: cc})
		}
	}

	if d.parallelism > 1 {
		return d.sendParallel(ctx, def.Identifier, units)
	}

	for _, u := range units {
		if err := d.sendUnit(ctx, def.Identifier, u); err != nil {
			return err
		}
	}
	return nil
}

// sendParallel dispatches units concurrently with bounded parallelism. Each
// unit only reads shared definition state and writes its own message, so the
// units are independent; errors are aggregated, never swallowed.
func (d *Dispatcher) sendParallel(ctx context.Context, identifier string, units []sendUnit) error {
	var (
		mu   sync.Mutex
		merr *multierror.Error
		eg   errgroup.Group
	)
	eg.SetLimit(d.parallelism)

	for _, u := range units {
		eg.Go(func() error {
			if err := d.sendUnit(ctx, identifier, u); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, xerrors.Errorf("channel %s: %w", u.channel, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return merr.ErrorOrNil()
}

func (d *Dispatcher) sendUnit(ctx context.Context, identifier string, u sendUnit) error {
	factory, ok := d.factories[u.channel]
	if !ok {
		return xerrors.Errorf("no notification factory registered for channel %q", u.channel)
	}

	msg, err := factory.Create(ctx, u.context)
	if err != nil {
		d.metrics.recordSend(u.channel, resultFailure)
		return xerrors.Errorf("render %s notification: %w", u.channel, err)
	}

	if err := d.notifier.Send(ctx, msg, u.recipient); err != nil {
		d.metrics.recordSend(u.channel, resultFailure)
		return xerrors.Errorf("deliver %s notification for %q: %w", u.channel, identifier, err)
	}

	d.metrics.recordSend(u.channel, resultSuccess)
	d.log.Debug(ctx, "notification sent",
		slog.F("definition", identifier), slog.F("channel", u.channel))
	return nil
}
