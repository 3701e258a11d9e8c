package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coder/quartz"

	"github.com/commsd/commsd/comms"
	"github.com/commsd/commsd/comms/dispatch"
	"github.com/commsd/commsd/comms/render"
	"github.com/commsd/commsd/comms/template"
	"github.com/commsd/commsd/testutil"
)

func TestRoutingNotifier(t *testing.T) {
	t.Parallel()

	emailTransport := &fakeNotifier{}
	webhookTransport := &fakeNotifier{}
	routing := dispatch.NewRoutingNotifier(map[string]dispatch.Notifier{
		comms.ChannelEmail: emailTransport,
		comms.ChannelSMS:   webhookTransport,
	})
	ctx := testutil.Context(t, testutil.WaitShort)
	recipient := comms.NewRecipient().SetName("Ada")

	require.NoError(t, routing.Send(ctx, &dispatch.EmailMessage{}, recipient))
	require.NoError(t, routing.Send(ctx, &dispatch.SMSMessage{}, recipient))
	require.Len(t, emailTransport.messages(), 1)
	require.Len(t, webhookTransport.messages(), 1)

	err := routing.Send(ctx, &dispatch.PushMessage{}, recipient)
	require.ErrorContains(t, err, `no transport configured for channel "mobile"`)
}

func TestFactoryUnsupportedContext(t *testing.T) {
	t.Parallel()

	templates := template.NewMemoryStore(quartz.NewMock(t))
	engine := render.NewEngine(template.NewResolver(templates), nil)
	ctx := testutil.Context(t, testutil.WaitShort)

	_, err := dispatch.NewEmailFactory(engine, templates).Create(ctx, comms.NewSMSContext())
	var unsupported *dispatch.UnsupportedContextTypeError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, comms.ChannelEmail, unsupported.Factory)

	_, err = dispatch.NewSMSFactory(engine, "").Create(ctx, comms.NewEmailContext())
	require.ErrorAs(t, err, &unsupported)

	_, err = dispatch.NewMobileFactory(engine).Create(ctx, comms.NewSMSContext())
	require.ErrorAs(t, err, &unsupported)
}

func TestEmailFactorySubjectFallback(t *testing.T) {
	t.Parallel()

	templates := template.NewMemoryStore(quartz.NewMock(t))
	engine := render.NewEngine(template.NewResolver(templates), nil)
	ctx := testutil.Context(t, testutil.WaitShort)

	// The stored template carries the subject line; the context has none.
	_, err := templates.Save(ctx, template.Template{
		Name:    "parcel_arrival",
		Channel: "email",
		Subject: "Parcel {{ .parcelId }} arrived",
		Content: `<p>arrived</p>`,
	})
	require.NoError(t, err)

	ec := comms.NewEmailContext()
	ec.SetHTMLTemplate("parcel_arrival")
	ec.AddSubjectContext("parcelId", "P-1")

	msg, err := dispatch.NewEmailFactory(engine, templates).Create(ctx, ec)
	require.NoError(t, err)
	require.Equal(t, "Parcel P-1 arrived", msg.(*dispatch.EmailMessage).Subject)
}

func TestEmailFactoryNoTemplateBound(t *testing.T) {
	t.Parallel()

	templates := template.NewMemoryStore(quartz.NewMock(t))
	engine := render.NewEngine(template.NewResolver(templates), nil)
	ctx := testutil.Context(t, testutil.WaitShort)

	_, err := dispatch.NewEmailFactory(engine, templates).Create(ctx, comms.NewEmailContext())
	require.ErrorContains(t, err, "no template bound")
}
