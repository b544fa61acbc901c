package helpers

import (
	"strings"

	"github.com/google/uuid"
)

func NewUserID() string { return "usr-" + shortID() }

func NewProjectID() string { return "p-" + shortID() }

// NewItemID names education and experience entries.
func NewItemID() string { return shortID()[:9] }

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
