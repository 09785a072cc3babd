package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity_Capabilities(t *testing.T) {
	admin := NewIdentity(&schema.User{ID: 1, Role: schema.RoleAdmin})
	agent := NewIdentity(&schema.User{ID: 2, Role: schema.RoleAgent})

	assert.True(t, admin.IsAdmin())
	assert.False(t, agent.IsAdmin())

	for _, c := range []Capability{ViewAllLeads, AssignLeads, DeleteLeads, ManageUsers, ManageProperties, ViewTeamStats} {
		assert.True(t, admin.Can(c), "admin should have %s", c)
		assert.False(t, agent.Can(c), "agent should not have %s", c)
	}
	assert.True(t, agent.Can(ExportLeads))
	assert.Equal(t, []string{"leads:export"}, agent.Capabilities())
}

func TestIdentity_OwnerScope(t *testing.T) {
	admin := NewIdentity(&schema.User{ID: 1, Role: schema.RoleAdmin})
	agent := NewIdentity(&schema.User{ID: 2, Role: schema.RoleAgent})

	assert.Nil(t, admin.OwnerScope())
	require.NotNil(t, agent.OwnerScope())
	assert.Equal(t, uint(2), *agent.OwnerScope())
}

func TestUnknownRoleHasNoCapabilities(t *testing.T) {
	id := NewIdentity(&schema.User{ID: 3, Role: "guest"})
	assert.Empty(t, id.Capabilities())
	assert.NotNil(t, id.OwnerScope())
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id := NewIdentity(&schema.User{ID: 7, Email: "a@b.c", Role: schema.RoleAgent})
	got, ok := FromContext(WithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Equal(t, uint(7), got.ID)
}

func TestAttach(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	id := NewIdentity(&schema.User{ID: 9, Email: "admin@example.com", Role: schema.RoleAdmin})
	Attach(c, id)

	assert.Equal(t, uint(9), c.Get(KeyUserID))
	assert.Equal(t, "admin", c.Get(KeyRole))

	got, ok := FromEcho(c)
	require.True(t, ok)
	assert.True(t, got.Can(ManageUsers))

	fromReq, ok := FromContext(c.Request().Context())
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", fromReq.Email)
}
