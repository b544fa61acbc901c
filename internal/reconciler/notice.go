package reconciler

import (
	"fmt"
	"time"
)

type NoticeKind string

const (
	// NoticePersistFailed means a remote write failed. The optimistic local
	// state is kept until the next snapshot replaces it.
	NoticePersistFailed NoticeKind = "persist_failed"
	// NoticeSessionFailed means the durable session copy could not be written.
	NoticeSessionFailed NoticeKind = "session_failed"
)

// Notice is a recoverable error meant to be shown to the user.
type Notice struct {
	Kind NoticeKind
	Op   string
	ID   string
	Err  error
	At   time.Time
}

func (n Notice) String() string {
	if n.ID == "" {
		return fmt.Sprintf("%s: %s: %v", n.Kind, n.Op, n.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", n.Kind, n.Op, n.ID, n.Err)
}

func (n Notice) Error() string { return n.String() }

func (n Notice) Unwrap() error { return n.Err }
