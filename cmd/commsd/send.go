package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/xerrors"

	"github.com/coder/serpent"

	"github.com/commsd/commsd/comms"
)

// sendInput is the JSON document the send command consumes, either from a
// file argument or stdin.
type sendInput struct {
	DefinitionID string                 `json:"definition_id"`
	From         string                 `json:"from,omitempty"`
	Subject      string                 `json:"subject,omitempty"`
	Contexts     map[string]sendContext `json:"contexts"`
	Recipients   []sendRecipient        `json:"recipients"`
}

type sendContext struct {
	Body           map[string]any `json:"body"`
	SubjectContext map[string]any `json:"subject_context,omitempty"`
}

type sendRecipient struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	PushToken string `json:"push_token,omitempty"`
}

func sendCommand(cfg *rootConfig) *serpent.Command {
	return &serpent.Command{
		Use:   "send [input.json]",
		Short: "Send a communication described by a JSON document.",
		Long: `Send a communication. The input document names the definition, the
per-channel context data and the recipients:

  {
    "definition_id": "parcel.arrival",
    "contexts": {
      "email": {"body": {"parcelId": "P-1", "location": "Berlin"}},
      "sms":   {"body": {"parcelId": "P-1", "location": "Berlin"}}
    },
    "recipients": [
      {"name": "Ada", "email": "ada@example.com", "phone": "+4915100000000"}
    ]
  }

Reads from stdin when no file is given.`,
		Handler: func(inv *serpent.Invocation) error {
			ctx := inv.Context()

			var reader io.Reader = inv.Stdin
			if len(inv.Args) > 0 {
				f, err := os.Open(inv.Args[0])
				if err != nil {
					return xerrors.Errorf("open input: %w", err)
				}
				defer f.Close()
				reader = f
			}

			var input sendInput
			if err := json.NewDecoder(reader).Decode(&input); err != nil {
				return xerrors.Errorf("decode input: %w", err)
			}

			c, err := buildCommunication(input)
			if err != nil {
				return err
			}

			db, err := cfg.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			log := cfg.logger(inv)
			d, err := cfg.dispatcher(db, log)
			if err != nil {
				return err
			}
			if err := d.Send(ctx, c); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(inv.Stdout, "sent %s to %d recipient(s)\n", input.DefinitionID, len(input.Recipients))
			return nil
		},
	}
}

func buildCommunication(input sendInput) (*comms.Communication, error) {
	if input.DefinitionID == "" {
		return nil, xerrors.New("definition_id is required")
	}
	if len(input.Recipients) == 0 {
		return nil, xerrors.New("at least one recipient is required")
	}

	set := comms.NewContextSet()
	for channel, sc := range input.Contexts {
		var cc comms.ChannelContext
		switch channel {
		case comms.ChannelEmail:
			cc = comms.NewEmailContext()
		case comms.ChannelSMS:
			cc = comms.NewSMSContext()
		case comms.ChannelMobile:
			cc = comms.NewMobileContext()
		default:
			return nil, xerrors.Errorf("unknown channel %q in contexts", channel)
		}
		cc.SetBodyContext(sc.Body)
		cc.SetSubjectContext(sc.SubjectContext)
		set.Add(cc)
	}

	c := comms.NewCommunication(input.DefinitionID, set)
	if input.From != "" {
		c.SetFrom(comms.Address{Address: input.From})
	}
	if input.Subject != "" {
		set.SetSubject(input.Subject)
	}

	for _, r := range input.Recipients {
		c.AddRecipients(comms.NewRecipient().
			SetName(r.Name).
			SetEmail(r.Email).
			SetPhone(r.Phone).
			SetPushToken(r.PushToken))
	}
	return c, nil
}
