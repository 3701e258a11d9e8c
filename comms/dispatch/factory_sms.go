package dispatch

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/commsd/commsd/comms"
	"github.com/commsd/commsd/comms/render"
)

// SMSFactory renders an sms context into an SMSMessage.
type SMSFactory struct {
	engine   *render.Engine
	senderID string
}

func NewSMSFactory(engine *render.Engine, senderID string) *SMSFactory {
	return &SMSFactory{engine: engine, senderID: senderID}
}

func (f *SMSFactory) Create(ctx context.Context, channelContext comms.ChannelContext) (Message, error) {
	sc, ok := channelContext.(*comms.SMSContext)
	if !ok {
		return nil, &UnsupportedContextTypeError{Factory: comms.ChannelSMS, Context: channelContext}
	}

	name := sc.TextTemplate()
	if name == "" {
		return nil, xerrors.New("sms context has no template bound")
	}
	body, err := f.engine.Render(ctx, name, sc.BodyContext())
	if err != nil {
		return nil, xerrors.Errorf("render sms body: %w", err)
	}

	return &SMSMessage{
		To:       sc.Recipients(),
		SenderID: f.senderID,
		Body:     body,
	}, nil
}
