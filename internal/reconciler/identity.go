package reconciler

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

// The session copy never carries the credential, and a list stored empty may
// come back nil, so neither counts as a difference.
var identityOptions = cmp.Options{
	cmpopts.IgnoreFields(models.User{}, "PasswordHash"),
	cmpopts.EquateEmpty(),
}

// IdentityEqual reports whether a and b describe the same identity content.
func IdentityEqual(a, b *models.User) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return cmp.Equal(*a, *b, identityOptions)
}

// ReconcileIdentity looks the cached identity up in a fresh users snapshot.
// It returns the replacement and true only when the fresh record exists and
// differs from the cached one. The replacement never carries the credential.
func ReconcileIdentity(cached *models.User, users []models.User) (models.User, bool) {
	if cached == nil {
		return models.User{}, false
	}
	for i := range users {
		if users[i].ID != cached.ID {
			continue
		}
		fresh := sessionCopy(users[i])
		if IdentityEqual(cached, &fresh) {
			return models.User{}, false
		}
		return fresh, true
	}
	return models.User{}, false
}

func sessionCopy(u models.User) models.User {
	out := u.Clone()
	out.PasswordHash = ""
	return out
}
