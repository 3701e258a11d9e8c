package definition

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
	"golang.org/x/xerrors"

	"cdr.dev/slog"

	"github.com/commsd/commsd/comms"
	"github.com/commsd/commsd/database"
)

// Store persists communication definitions. FindByIdentifier is the read side
// of the dispatch path; Save is the authoring side.
type Store struct {
	db  *database.DB
	log slog.Logger
}

func NewStore(db *database.DB, log slog.Logger) *Store {
	return &Store{db: db, log: log}
}

type channelDefinitionRow struct {
	Name          string          `db:"name"`
	Channel       sql.NullString  `db:"channel"`
	Template      sql.NullString  `db:"template"`
	ContextSchema json.RawMessage `db:"context_schema"`
	SubjectSchema json.RawMessage `db:"subject_schema"`
	ChannelConfig json.RawMessage `db:"channel_config"`
}

// emailChannelConfig et al. are the channel_config jsonb payloads, keyed by
// the channel column.
type emailChannelConfig struct {
	FromAddress string `json:"from_address"`
	ReplyTo     string `json:"reply_to,omitempty"`
}

type smsChannelConfig struct {
	SenderID string `json:"sender_id,omitempty"`
}

type mobileChannelConfig struct {
	Priority     int  `json:"priority"`
	RequiresAuth bool `json:"requires_auth"`
}

// FindByIdentifier loads a definition and all of its channel definitions.
// A stored channel kind this build does not know is a fatal decode error.
func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*CommunicationDefinition, error) {
	const query = `
SELECT cd.name,
       chd.channel,
       chd.template,
       chd.context_schema,
       chd.subject_schema,
       chd.channel_config
FROM communication_definitions cd
LEFT JOIN channel_definitions chd ON cd.identifier = chd.communication_identifier
WHERE cd.identifier = $1
ORDER BY chd.channel`

	var rows []channelDefinitionRow
	if err := s.db.SelectContext(ctx, &rows, query, identifier); err != nil {
		return nil, xerrors.Errorf("query definition %q: %w", identifier, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	def := NewCommunicationDefinition(identifier, rows[0].Name)
	for _, row := range rows {
		// A definition without channels yields a single row with NULL
		// channel columns from the left join.
		if !row.Channel.Valid {
			continue
		}
		cd, err := decodeChannelDefinition(identifier, row)
		if err != nil {
			return nil, err
		}
		def.AddChannelDefinition(cd)
	}
	return def, nil
}

func decodeChannelDefinition(identifier string, row channelDefinitionRow) (ChannelDefinition, error) {
	channel := row.Channel.String
	template := row.Template.String

	switch channel {
	case comms.ChannelEmail:
		var cfg emailChannelConfig
		if err := json.Unmarshal(row.ChannelConfig, &cfg); err != nil {
			return nil, xerrors.Errorf("decode email channel config for %q: %w", identifier, err)
		}
		return NewEmailChannelDefinition(template, row.ContextSchema, row.SubjectSchema, cfg.FromAddress, cfg.ReplyTo), nil
	case comms.ChannelSMS:
		var cfg smsChannelConfig
		if err := json.Unmarshal(row.ChannelConfig, &cfg); err != nil {
			return nil, xerrors.Errorf("decode sms channel config for %q: %w", identifier, err)
		}
		return NewSMSChannelDefinition(template, row.ContextSchema, row.SubjectSchema, cfg.SenderID), nil
	case comms.ChannelMobile:
		var cfg mobileChannelConfig
		if err := json.Unmarshal(row.ChannelConfig, &cfg); err != nil {
			return nil, xerrors.Errorf("decode mobile channel config for %q: %w", identifier, err)
		}
		return NewMobileChannelDefinition(template, row.ContextSchema, row.SubjectSchema, cfg.Priority, cfg.RequiresAuth), nil
	default:
		return nil, &UnknownChannelKindError{Identifier: identifier, Channel: channel}
	}
}

func encodeChannelConfig(identifier string, cd ChannelDefinition) (json.RawMessage, error) {
	var cfg any
	switch d := cd.(type) {
	case *EmailChannelDefinition:
		cfg = emailChannelConfig{FromAddress: d.FromAddress, ReplyTo: d.ReplyTo}
	case *SMSChannelDefinition:
		cfg = smsChannelConfig{SenderID: d.SenderID}
	case *MobileChannelDefinition:
		cfg = mobileChannelConfig{Priority: d.Priority, RequiresAuth: d.RequiresAuth}
	default:
		return nil, &UnknownChannelKindError{Identifier: identifier, Channel: cd.Channel()}
	}
	out, err := json.Marshal(cfg)
	if err != nil {
		return nil, xerrors.Errorf("encode channel config: %w", err)
	}
	return out, nil
}

// Save upserts a definition and replaces all of its channel definitions
// atomically (delete-then-insert within one transaction). Partial updates to
// a single channel are not supported; callers resubmit the full set.
//
// Concurrent saves for the same identifier are not serialized here; callers
// that care must serialize externally.
func (s *Store) Save(ctx context.Context, def *CommunicationDefinition) error {
	// Reject malformed schemas before touching the database.
	for _, cd := range def.ChannelDefinitions() {
		if base, ok := cd.(interface{ checkSchemas() error }); ok {
			if err := base.checkSchemas(); err != nil {
				return err
			}
		}
	}

	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		const upsert = `
INSERT INTO communication_definitions (identifier, name, updated_at)
VALUES ($1, $2, CURRENT_TIMESTAMP)
ON CONFLICT (identifier)
DO UPDATE SET name = $2, updated_at = CURRENT_TIMESTAMP`
		if _, err := tx.ExecContext(ctx, upsert, def.Identifier, def.Name); err != nil {
			return xerrors.Errorf("upsert definition: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM channel_definitions WHERE communication_identifier = $1`, def.Identifier); err != nil {
			return xerrors.Errorf("delete channel definitions: %w", err)
		}

		const insert = `
INSERT INTO channel_definitions (communication_identifier, channel, template, context_schema, subject_schema, channel_config)
VALUES ($1, $2, $3, $4, $5, $6)`
		for _, cd := range def.ChannelDefinitions() {
			cfg, err := encodeChannelConfig(def.Identifier, cd)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, insert,
				def.Identifier,
				cd.Channel(),
				cd.Template(),
				[]byte(cd.ContextSchema()),
				[]byte(cd.SubjectSchema()),
				[]byte(cfg),
			)
			if err != nil {
				return xerrors.Errorf("insert channel definition %q: %w", cd.Channel(), err)
			}
		}
		return nil
	})
	if err != nil {
		return xerrors.Errorf("save definition %q: %w", def.Identifier, err)
	}

	s.log.Debug(ctx, "saved communication definition",
		slog.F("identifier", def.Identifier),
		slog.F("channels", len(def.ChannelDefinitions())))
	return nil
}

// Delete removes a definition; channel definitions cascade.
func (s *Store) Delete(ctx context.Context, identifier string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM communication_definitions WHERE identifier = $1`, identifier)
	if err != nil {
		return xerrors.Errorf("delete definition %q: %w", identifier, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return xerrors.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err means the definition does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
