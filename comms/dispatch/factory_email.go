package dispatch

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/commsd/commsd/comms"
	"github.com/commsd/commsd/comms/render"
	"github.com/commsd/commsd/comms/template"
)

// EmailFactory renders an email context into an EmailMessage.
type EmailFactory struct {
	engine    *render.Engine
	templates template.Store
}

func NewEmailFactory(engine *render.Engine, templates template.Store) *EmailFactory {
	return &EmailFactory{engine: engine, templates: templates}
}

func (f *EmailFactory) Create(ctx context.Context, channelContext comms.ChannelContext) (Message, error) {
	ec, ok := channelContext.(*comms.EmailContext)
	if !ok {
		return nil, &UnsupportedContextTypeError{Factory: comms.ChannelEmail, Context: channelContext}
	}

	subject, err := f.subject(ctx, ec)
	if err != nil {
		return nil, xerrors.Errorf("render subject: %w", err)
	}

	var htmlBody, textBody string
	if name := ec.HTMLTemplate(); name != "" {
		htmlBody, err = f.engine.RenderHTML(ctx, name, ec.BodyContext())
		if err != nil {
			return nil, xerrors.Errorf("render html body: %w", err)
		}
	}
	if name := ec.TextTemplate(); name != "" {
		textBody, err = f.engine.Render(ctx, name, ec.BodyContext())
		if err != nil {
			return nil, xerrors.Errorf("render text body: %w", err)
		}
	}
	if htmlBody == "" && textBody == "" {
		return nil, xerrors.New("email context has no template bound")
	}

	msg := &EmailMessage{
		To:       ec.Recipients(),
		ReplyTo:  ec.ReplyTo(),
		CC:       ec.CC(),
		BCC:      ec.BCC(),
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	}
	if from := ec.From(); from != nil {
		msg.From = *from
	}
	return msg, nil
}

// subject renders the context subject as a template against the subject
// context. An empty context subject falls back to the subject column of the
// bound template's stored row, so a definition can ship its subject line with
// the template.
func (f *EmailFactory) subject(ctx context.Context, ec *comms.EmailContext) (string, error) {
	raw := ec.Subject()
	if raw == "" {
		name := ec.HTMLTemplate()
		if name == "" {
			name = ec.TextTemplate()
		}
		if name != "" {
			_, base, channel := template.CanonicalName(name)
			tmpl, err := f.templates.FindByNameAndChannel(ctx, base, channel)
			if err == nil {
				raw = tmpl.Subject
			} else if !xerrors.Is(err, template.ErrNotFound) {
				return "", err
			}
		}
	}
	if raw == "" {
		return "", nil
	}
	return render.GoTemplate(raw, ec.SubjectContext(), nil)
}
