package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

func TestReconcileIdentity(t *testing.T) {
	cached := models.User{ID: "usr-1", Name: "Esi", Email: "esi@example.com"}

	tests := []struct {
		name        string
		cached      *models.User
		users       []models.User
		wantChanged bool
	}{
		{
			name:   "no session",
			cached: nil,
			users:  []models.User{cached},
		},
		{
			name:   "identity not in snapshot",
			cached: &cached,
			users:  []models.User{{ID: "usr-2", Email: "x@example.com"}},
		},
		{
			name:   "credential and empty lists are not differences",
			cached: &cached,
			users: []models.User{{
				ID: "usr-1", Name: "Esi", Email: "esi@example.com",
				PasswordHash: "hash", Following: []string{}, Education: []models.EducationItem{},
			}},
		},
		{
			name:        "changed profile",
			cached:      &cached,
			users:       []models.User{{ID: "usr-1", Name: "Esi A.", Email: "esi@example.com", PasswordHash: "hash"}},
			wantChanged: true,
		},
		{
			name:   "changed contacts",
			cached: &cached,
			users: []models.User{{
				ID: "usr-1", Name: "Esi", Email: "esi@example.com",
				Contacts: &models.Contacts{Instagram: "@esi"},
			}},
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := ReconcileIdentity(tt.cached, tt.users)
			assert.Equal(t, tt.wantChanged, changed)
			if changed {
				assert.Equal(t, tt.users[0].Name, got.Name)
				assert.Empty(t, got.PasswordHash)
			} else {
				assert.Equal(t, models.User{}, got)
			}
		})
	}
}

func TestIdentityEqual(t *testing.T) {
	a := &models.User{ID: "usr-1"}
	assert.True(t, IdentityEqual(nil, nil))
	assert.False(t, IdentityEqual(a, nil))
	assert.False(t, IdentityEqual(nil, a))
	assert.True(t, IdentityEqual(a, &models.User{ID: "usr-1", PasswordHash: "x"}))
}
