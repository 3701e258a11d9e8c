package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
	"golang.org/x/xerrors"

	"github.com/coder/quartz"

	"github.com/commsd/commsd/database"
)

// PostgresStore persists templates in the communication_templates table.
type PostgresStore struct {
	db    *database.DB
	clock quartz.Clock
}

func NewPostgresStore(db *database.DB, clock quartz.Clock) *PostgresStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &PostgresStore{db: db, clock: clock}
}

type templateRow struct {
	ID          uuid.UUID             `db:"id"`
	Name        string                `db:"name"`
	Channel     string                `db:"channel"`
	Subject     sql.NullString        `db:"subject"`
	Content     string                `db:"content"`
	ContentType string                `db:"content_type"`
	Metadata    pqtype.NullRawMessage `db:"metadata"`
	CreatedAt   time.Time             `db:"created_at"`
	UpdatedAt   time.Time             `db:"updated_at"`
}

const templateColumns = `id, name, channel, subject, content, content_type, metadata, created_at, updated_at`

func (r templateRow) toTemplate() (Template, error) {
	tmpl := Template{
		ID:          r.ID,
		Name:        r.Name,
		Channel:     r.Channel,
		Subject:     r.Subject.String,
		Content:     r.Content,
		ContentType: r.ContentType,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Metadata.Valid {
		if err := json.Unmarshal(r.Metadata.RawMessage, &tmpl.Metadata); err != nil {
			return Template{}, xerrors.Errorf("decode template metadata: %w", err)
		}
	}
	return tmpl, nil
}

func (s *PostgresStore) find(ctx context.Context, query string, args ...any) (Template, error) {
	var row templateRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	if err != nil {
		return Template{}, xerrors.Errorf("query template: %w", err)
	}
	return row.toTemplate()
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (Template, error) {
	return s.find(ctx, `SELECT `+templateColumns+` FROM communication_templates WHERE id = $1`, id)
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (Template, error) {
	return s.find(ctx, `SELECT `+templateColumns+` FROM communication_templates WHERE name = $1 LIMIT 1`, name)
}

func (s *PostgresStore) FindByNameAndChannel(ctx context.Context, name, channel string) (Template, error) {
	return s.find(ctx, `SELECT `+templateColumns+` FROM communication_templates WHERE name = $1 AND channel = $2`, name, channel)
}

// Save upserts on (name, channel) and returns the stored row with its
// database-assigned timestamps.
func (s *PostgresStore) Save(ctx context.Context, tmpl Template) (Template, error) {
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}
	if tmpl.ContentType == "" {
		tmpl.ContentType = ContentTypeHTML
	}

	var metadata pqtype.NullRawMessage
	if tmpl.Metadata != nil {
		raw, err := json.Marshal(tmpl.Metadata)
		if err != nil {
			return Template{}, xerrors.Errorf("encode template metadata: %w", err)
		}
		metadata = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	subject := sql.NullString{String: tmpl.Subject, Valid: tmpl.Subject != ""}
	now := s.clock.Now().UTC()

	const query = `
INSERT INTO communication_templates (id, name, channel, subject, content, content_type, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (name, channel)
DO UPDATE SET subject = $4, content = $5, content_type = $6, metadata = $7, updated_at = $8
RETURNING ` + templateColumns

	var row templateRow
	err := s.db.GetContext(ctx, &row, query,
		tmpl.ID, tmpl.Name, tmpl.Channel, subject, tmpl.Content, tmpl.ContentType, metadata, now)
	if err != nil {
		return Template{}, xerrors.Errorf("save template %q: %w", tmpl.Name, err)
	}
	return row.toTemplate()
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM communication_templates WHERE id = $1`, id)
	if err != nil {
		return xerrors.Errorf("delete template: %w", err)
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
