package services

import "errors"

var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrEmailNotFound = errors.New("email not found")
	ErrWrongPassword = errors.New("wrong password")
	ErrForbidden     = errors.New("not allowed to change this resource")
	ErrSelfFollow    = errors.New("cannot follow yourself")
	ErrBlankName     = errors.New("full name is blank")
	ErrNoEvidence    = errors.New("evidence needs a link or an image")
	ErrImageTooBig   = errors.New("uploaded image exceeds the size limit")
	// ErrPersistFailed wraps store errors on writes the caller waited for.
	ErrPersistFailed = errors.New("failed to persist")
)
