// Package session resolves who is making a request and what they may do.
package session

import (
	"context"
	"sort"

	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/labstack/echo/v4"
)

// Capability is a permission granted by a role.
type Capability string

const (
	ViewAllLeads     Capability = "leads:view_all"
	AssignLeads      Capability = "leads:assign"
	DeleteLeads      Capability = "leads:delete"
	ExportLeads      Capability = "leads:export"
	ManageUsers      Capability = "users:manage"
	ManageProperties Capability = "properties:manage"
	ViewTeamStats    Capability = "stats:team"
)

type capSet map[Capability]struct{}

func newCapSet(caps ...Capability) capSet {
	s := make(capSet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// roleCapabilities is resolved once per identity; agents get none of these.
var roleCapabilities = map[schema.Role]capSet{
	schema.RoleAdmin: newCapSet(ViewAllLeads, AssignLeads, DeleteLeads, ExportLeads,
		ManageUsers, ManageProperties, ViewTeamStats),
	schema.RoleAgent: newCapSet(ExportLeads),
}

// Identity is the authenticated user attached to a request.
type Identity struct {
	ID       uint
	Email    string
	Role     schema.Role
	FullName string
	caps     capSet
}

// NewIdentity resolves the capability set for u.
func NewIdentity(u *schema.User) Identity {
	return Identity{
		ID:       u.ID,
		Email:    u.Email,
		Role:     u.Role,
		FullName: u.FullName,
		caps:     roleCapabilities[u.Role],
	}
}

// IsAdmin reports whether the identity has the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == schema.RoleAdmin
}

// Can reports whether the identity holds capability c.
func (i Identity) Can(c Capability) bool {
	_, ok := i.caps[c]
	return ok
}

// Capabilities lists the identity's capabilities in a stable order.
func (i Identity) Capabilities() []string {
	out := make([]string, 0, len(i.caps))
	for c := range i.caps {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// OwnerScope returns the user id lead queries must be restricted to, or nil
// when the identity may see every lead.
func (i Identity) OwnerScope() *uint {
	if i.Can(ViewAllLeads) {
		return nil
	}
	id := i.ID
	return &id
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Echo context keys set by Attach.
const (
	KeyIdentity = "identity"
	KeyUserID   = "user_id"
	KeyEmail    = "user_email"
	KeyRole     = "user_role"
)

// Attach annotates the echo context and its request context with id.
func Attach(c echo.Context, id Identity) {
	c.Set(KeyIdentity, id)
	c.Set(KeyUserID, id.ID)
	c.Set(KeyEmail, id.Email)
	c.Set(KeyRole, string(id.Role))
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

// FromEcho returns the identity attached by Attach.
func FromEcho(c echo.Context) (Identity, bool) {
	id, ok := c.Get(KeyIdentity).(Identity)
	if ok {
		return id, true
	}
	return FromContext(c.Request().Context())
}
