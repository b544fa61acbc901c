package models

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrUnknownPhase     = errors.New("unknown phase")
	ErrIncompleteStages = errors.New("project must carry all five phases")
)
