package dispatch

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/commsd/commsd/comms"
	"github.com/commsd/commsd/comms/render"
)

// MobileFactory renders a mobile push context into a PushMessage.
type MobileFactory struct {
	engine *render.Engine
}

func NewMobileFactory(engine *render.Engine) *MobileFactory {
	return &MobileFactory{engine: engine}
}

func (f *MobileFactory) Create(ctx context.Context, channelContext comms.ChannelContext) (Message, error) {
	mc, ok := channelContext.(*comms.MobileContext)
	if !ok {
		return nil, &UnsupportedContextTypeError{Factory: comms.ChannelMobile, Context: channelContext}
	}

	name := mc.TextTemplate()
	if name == "" {
		return nil, xerrors.New("mobile context has no template bound")
	}
	body, err := f.engine.Render(ctx, name, mc.BodyContext())
	if err != nil {
		return nil, xerrors.Errorf("render push body: %w", err)
	}

	title, err := render.GoTemplate(mc.Subject(), mc.SubjectContext(), nil)
	if err != nil {
		return nil, xerrors.Errorf("render push title: %w", err)
	}

	return &PushMessage{
		To:           mc.Recipients(),
		Title:        title,
		Body:         body,
		Priority:     mc.Priority(),
		RequiresAuth: mc.RequiresAuth(),
		Data:         mc.Data(),
	}, nil
}
