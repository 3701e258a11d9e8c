package definition_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/commsd/commsd/comms"
	"github.com/commsd/commsd/comms/definition"
)

var (
	contextSchema = json.RawMessage(`{
		"type": "object",
		"required": ["parcelId", "location"],
		"properties": {
			"parcelId": {"type": "string"},
			"location": {"type": "string"}
		}
	}`)
	subjectSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"subject": {"type": "string", "maxLength": 80}
		}
	}`)
)

func TestValidateContext(t *testing.T) {
	t.Parallel()

	cd := definition.NewEmailChannelDefinition("parcel_arrival", contextSchema, subjectSchema, "", "")

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()

		err := cd.ValidateContext(map[string]any{
			"parcelId": "P-1",
			"location": "Berlin",
		})
		require.NoError(t, err)
	})

	t.Run("MissingRequiredField", func(t *testing.T) {
		t.Parallel()

		err := cd.ValidateContext(map[string]any{"parcelId": "P-1"})

		var invalid *definition.InvalidContextError
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, comms.ChannelEmail, invalid.Channel)
		require.NotEmpty(t, invalid.Violations)
		require.Contains(t, err.Error(), "location")
	})

	t.Run("WrongType", func(t *testing.T) {
		t.Parallel()

		err := cd.ValidateContext(map[string]any{
			"parcelId": 42,
			"location": "Berlin",
		})

		var invalid *definition.InvalidContextError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, err.Error(), "parcelId")
	})

	t.Run("NilContextIsEmptyObject", func(t *testing.T) {
		t.Parallel()

		err := cd.ValidateContext(nil)

		var invalid *definition.InvalidContextError
		require.ErrorAs(t, err, &invalid)
	})
}

func TestValidateSubject(t *testing.T) {
	t.Parallel()

	cd := definition.NewSMSChannelDefinition("parcel_arrival.text:sms", contextSchema, subjectSchema, "PARCELS")

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, cd.ValidateSubject(map[string]any{"subject": "Parcel update"}))
	})

	t.Run("WrongType", func(t *testing.T) {
		t.Parallel()

		err := cd.ValidateSubject(map[string]any{"subject": 42})

		var invalid *definition.InvalidSubjectError
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, comms.ChannelSMS, invalid.Channel)
	})
}

func TestValidateMalformedSchema(t *testing.T) {
	t.Parallel()

	cd := definition.NewEmailChannelDefinition("parcel_arrival", json.RawMessage(`{not json`), subjectSchema, "", "")

	err := cd.ValidateContext(map[string]any{"parcelId": "P-1"})

	var invalid *definition.InvalidSchemaError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "context", invalid.Which)
}

func TestCommunicationDefinitionChannels(t *testing.T) {
	t.Parallel()

	def := definition.NewCommunicationDefinition("parcel.arrival", "Parcel arrival")
	def.AddChannelDefinition(definition.NewEmailChannelDefinition("parcel_arrival", contextSchema, subjectSchema, "noreply@example.com", ""))
	def.AddChannelDefinition(definition.NewSMSChannelDefinition("parcel_arrival.text:sms", contextSchema, subjectSchema, "PARCELS"))

	require.Nil(t, def.ChannelDefinition(comms.ChannelMobile))
	require.NotNil(t, def.ChannelDefinition(comms.ChannelSMS))

	// Insertion order is preserved and re-adding a channel replaces in place.
	def.AddChannelDefinition(definition.NewEmailChannelDefinition("parcel_arrival_v2", contextSchema, subjectSchema, "", ""))
	cds := def.ChannelDefinitions()
	require.Len(t, cds, 2)
	require.Equal(t, comms.ChannelEmail, cds[0].Channel())
	require.Equal(t, "parcel_arrival_v2", cds[0].Template())
	require.Equal(t, comms.ChannelSMS, cds[1].Channel())
}
