package comms_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/commsd/commsd/comms"
)

func TestRecipientChannels(t *testing.T) {
	t.Parallel()

	t.Run("DerivedFromFields", func(t *testing.T) {
		t.Parallel()

		r := comms.NewRecipient().
			SetName("Ada").
			SetEmail("ada@example.com").
			SetPhone("+4915100000000")
		require.Equal(t, []string{comms.ChannelEmail, comms.ChannelSMS}, r.Channels())

		addr, ok := r.AddressFor(comms.ChannelEmail)
		require.True(t, ok)
		require.Equal(t, comms.Address{Name: "Ada", Address: "ada@example.com"}, addr)

		_, ok = r.AddressFor(comms.ChannelMobile)
		require.False(t, ok)
	})

	t.Run("EmptyFieldsIgnored", func(t *testing.T) {
		t.Parallel()

		r := comms.NewRecipient().SetEmail("").SetPushToken("tok-1")
		require.Equal(t, []string{comms.ChannelMobile}, r.Channels())
	})

	t.Run("Deduplicated", func(t *testing.T) {
		t.Parallel()

		r := comms.NewRecipient().
			SetEmail("first@example.com").
			SetEmail("second@example.com")
		require.Equal(t, []string{comms.ChannelEmail}, r.Channels())
		require.Equal(t, "second@example.com", r.Email())
	})
}

func TestCommunicationAddRecipients(t *testing.T) {
	t.Parallel()

	emailCtx := comms.NewEmailContext()
	smsCtx := comms.NewSMSContext()
	c := comms.NewCommunication("parcel.arrival", comms.NewContextSet(emailCtx, smsCtx))

	both := comms.NewRecipient().SetName("Ada").
		SetEmail("ada@example.com").SetPhone("+4915100000000")
	emailOnly := comms.NewRecipient().SetName("Grace").
		SetEmail("grace@example.com")
	// A push token without a mobile context in the set: the mirror is a no-op
	// for that channel.
	pushOnly := comms.NewRecipient().SetName("Edsger").SetPushToken("tok-1")

	c.AddRecipients(both, emailOnly, pushOnly)

	require.Len(t, c.Recipients(), 3)
	require.Equal(t, []comms.Address{
		{Name: "Ada", Address: "ada@example.com"},
		{Name: "Grace", Address: "grace@example.com"},
	}, emailCtx.Recipients())
	require.Equal(t, []comms.Address{
		{Name: "Ada", Address: "+4915100000000"},
	}, smsCtx.Recipients())
}

func TestContextSetBroadcast(t *testing.T) {
	t.Parallel()

	emailCtx := comms.NewEmailContext()
	smsCtx := comms.NewSMSContext()
	mobileCtx := comms.NewMobileContext()
	set := comms.NewContextSet(emailCtx, smsCtx, mobileCtx)

	// Only the email context carries a sender; sms and mobile are skipped.
	set.SetFrom(comms.Address{Address: "noreply@example.com"})
	require.NotNil(t, emailCtx.From())
	require.Equal(t, "noreply@example.com", emailCtx.From().Address)

	// Subjects land on email and mobile, not sms.
	set.SetSubject("Parcel update")
	require.Equal(t, "Parcel update", emailCtx.Subject())
	require.Equal(t, "Parcel update", mobileCtx.Subject())

	set.AddBodyContext("parcelId", "P-1")
	require.Equal(t, "P-1", emailCtx.BodyContext()["parcelId"])
	require.Equal(t, "P-1", smsCtx.BodyContext()["parcelId"])
	require.Equal(t, "P-1", mobileCtx.BodyContext()["parcelId"])
}

func TestContextGettersArePureReads(t *testing.T) {
	t.Parallel()

	ec := comms.NewEmailContext()
	require.Nil(t, ec.BodyContext())
	require.Nil(t, ec.SubjectContext())

	// Parallel fan-out reads a single context from several goroutines at
	// once; the getters must not write the backing fields. The race detector
	// fails this test if they do.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ec.BodyContext()
			_ = ec.SubjectContext()
		}()
	}
	wg.Wait()

	require.Nil(t, ec.SubjectContext())
	ec.AddSubjectContext("subject", "Parcel update")
	require.Equal(t, map[string]any{"subject": "Parcel update"}, ec.SubjectContext())
}

func TestEmailContextReplyTo(t *testing.T) {
	t.Parallel()

	ec := comms.NewEmailContext()
	require.Nil(t, ec.ReplyTo())

	ec.SetFrom(comms.Address{Address: "noreply@example.com"})
	require.Equal(t, []comms.Address{{Address: "noreply@example.com"}}, ec.ReplyTo())

	ec.SetReplyTo([]comms.Address{{Address: "support@example.com"}})
	require.Equal(t, []comms.Address{{Address: "support@example.com"}}, ec.ReplyTo())
}

func TestContextSetReplace(t *testing.T) {
	t.Parallel()

	first := comms.NewEmailContext()
	second := comms.NewEmailContext()
	set := comms.NewContextSet(first)
	set.Add(second)

	require.Equal(t, []string{comms.ChannelEmail}, set.Channels())
	require.Same(t, second, set.Context(comms.ChannelEmail))
}
