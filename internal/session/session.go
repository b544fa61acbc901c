// Package session persists the signed-in identity between runs and tells
// other instances sharing the same store when it changes.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

// Key names the stored identity in every backend.
const Key = "humanfolio_current_user"

func encode(u *models.User) ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session user: %w", err)
	}
	return data, nil
}

// decode returns nil for an empty payload.
func decode(data []byte) (*models.User, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode session user: %w", err)
	}
	return &u, nil
}
