// Package template persists named template bodies and resolves them with
// dependency-aware cache invalidation. Templates are user-editable content
// stored in a database rather than on disk, so freshness cannot come from
// file mtimes; it is derived from updated_at timestamps across the whole
// inheritance chain instead.
package template

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/commsd/commsd/comms"
)

// ContentTypeHTML is the default content type for stored templates.
const ContentTypeHTML = "text/html"

// ErrNotFound is returned by store lookups when no template matches.
var ErrNotFound = xerrors.New("template not found")

// NotFoundError names the missing template. It is surfaced by the resolver
// when a template, or one of its inheritance parents, does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "template " + e.Name + " does not exist"
}

func (*NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Template is one stored template body. Name is unique per (name, channel).
type Template struct {
	ID          uuid.UUID
	Name        string
	Channel     string
	Subject     string
	Content     string
	ContentType string
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the persistence contract for templates. The dispatch path only
// reads; authoring goes through Save/Delete.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (Template, error)
	FindByName(ctx context.Context, name string) (Template, error)
	FindByNameAndChannel(ctx context.Context, name, channel string) (Template, error)
	Save(ctx context.Context, tmpl Template) (Template, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CanonicalName normalizes a template reference to "name:channel" form,
// defaulting the channel to email. This is the repo-wide addressing mode.
func CanonicalName(name string) (string, string, string) {
	base, channel, ok := strings.Cut(name, ":")
	if !ok || channel == "" {
		channel = comms.ChannelEmail
	}
	return base + ":" + channel, base, channel
}
