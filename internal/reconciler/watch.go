package reconciler

import (
	"time"
)

// Change names what a broadcast is about.
type Change string

const (
	ChangeProjects Change = "projects"
	ChangeUsers    Change = "users"
	ChangeIdentity Change = "identity"
)

type watcher struct {
	kinds map[Change]bool
	ch    chan struct{}
}

// Watch registers for coalesced wake-ups on the given kinds of change (all
// kinds when none are given). Several changes between two reads collapse into
// one wake-up; readers fetch the full mirror afterwards. The returned
// function unregisters.
func (r *Reconciler) Watch(kinds ...Change) (<-chan struct{}, func()) {
	w := &watcher{kinds: map[Change]bool{}, ch: make(chan struct{}, 1)}
	for _, k := range kinds {
		w.kinds[k] = true
	}

	r.watchMu.Lock()
	r.watchers[w] = struct{}{}
	r.watchMu.Unlock()

	return w.ch, func() {
		r.watchMu.Lock()
		delete(r.watchers, w)
		r.watchMu.Unlock()
	}
}

func (r *Reconciler) broadcast(kind Change) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	for w := range r.watchers {
		if len(w.kinds) > 0 && !w.kinds[kind] {
			continue
		}
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}

// Notices delivers recoverable errors. It is closed by Stop.
func (r *Reconciler) Notices() <-chan Notice { return r.notices }

func (r *Reconciler) emit(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	r.noticeMu.Lock()
	defer r.noticeMu.Unlock()
	if r.noticeClosed {
		return
	}
	select {
	case r.notices <- n:
	default:
		r.logger.Warn("notice dropped, nobody is reading", "notice", n.String())
	}
}

func (r *Reconciler) closeNotices() {
	r.noticeMu.Lock()
	defer r.noticeMu.Unlock()
	if !r.noticeClosed {
		r.noticeClosed = true
		close(r.notices)
	}
}
