// Package reconciler keeps local mirrors of the user and project collections
// in step with the document store, applies optimistic writes, and keeps the
// signed-in identity fresh.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

var (
	ErrStopped  = errors.New("reconciler stopped")
	ErrNotReady = errors.New("mirrors not loaded yet")
)

const (
	defaultWriteTimeout = 15 * time.Second
	defaultNoticeBuffer = 64
)

// SessionStore is the durable home of the current session identity.
type SessionStore interface {
	Load(ctx context.Context) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	Clear(ctx context.Context) error
	// Watch reports changes made through other handles on the same store.
	Watch(ctx context.Context, onChange func(*models.User)) (func(), error)
}

type Options struct {
	Logger       *slog.Logger
	Session      SessionStore
	WriteTimeout time.Duration
	NoticeBuffer int
}

type Reconciler struct {
	store        models.Store
	session      SessionStore
	logger       *slog.Logger
	writeTimeout time.Duration

	mu             sync.RWMutex
	projects       []models.Project
	users          []models.User
	identity       *models.User
	projectsLoaded bool
	usersLoaded    bool
	ready          chan struct{}

	// writes not yet answered by the store, laid over every snapshot
	pendingProjects map[string]pendingProject
	pendingUsers    map[string]pendingUser
	seq             uint64

	queue      *writeQueue
	writerDone chan struct{}

	noticeMu     sync.Mutex
	notices      chan Notice
	noticeClosed bool

	watchMu  sync.Mutex
	watchers map[*watcher]struct{}

	lifeMu  sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	unsubs  []func()
}

func New(store models.Store, opts Options) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.NoticeBuffer <= 0 {
		opts.NoticeBuffer = defaultNoticeBuffer
	}
	return &Reconciler{
		store:           store,
		session:         opts.Session,
		logger:          opts.Logger.With("component", "reconciler"),
		writeTimeout:    opts.WriteTimeout,
		ready:           make(chan struct{}),
		pendingProjects: map[string]pendingProject{},
		pendingUsers:    map[string]pendingUser{},
		queue:           newWriteQueue(),
		writerDone:      make(chan struct{}),
		notices:         make(chan Notice, opts.NoticeBuffer),
		watchers:        map[*watcher]struct{}{},
	}
}

// Start restores the cached identity, starts the writer and opens both
// subscriptions. The mirrors fill asynchronously; see Ready.
func (r *Reconciler) Start(ctx context.Context) error {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if r.started {
		return nil
	}

	if r.session != nil {
		cached, err := r.session.Load(ctx)
		if err != nil {
			r.logger.Warn("failed to load session identity", "error", err)
		} else if cached != nil {
			u := sessionCopy(*cached)
			r.mu.Lock()
			r.identity = &u
			r.mu.Unlock()
		}
	}

	sctx, cancel := context.WithCancel(ctx)
	go r.runWriter()

	unsubUsers, err := r.store.SubscribeUsers(sctx, r.onUsers)
	if err != nil {
		cancel()
		r.queue.close()
		<-r.writerDone
		return fmt.Errorf("failed to subscribe to users: %w", err)
	}
	unsubProjects, err := r.store.SubscribeProjects(sctx, r.onProjects)
	if err != nil {
		unsubUsers()
		cancel()
		r.queue.close()
		<-r.writerDone
		return fmt.Errorf("failed to subscribe to projects: %w", err)
	}
	r.unsubs = []func(){unsubUsers, unsubProjects}

	if r.session != nil {
		unsubSession, err := r.session.Watch(sctx, r.onSessionChange)
		if err != nil {
			r.logger.Warn("session changes from other instances will not be followed", "error", err)
		} else {
			r.unsubs = append(r.unsubs, unsubSession)
		}
	}

	r.cancel = cancel
	r.started = true
	r.logger.Debug("reconciler started")
	return nil
}

// Stop closes the subscriptions, drains queued writes and waits for every
// goroutine the reconciler started. The notice channel is closed afterwards.
func (r *Reconciler) Stop() {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	if !r.started {
		r.closeNotices()
		return
	}

	for _, unsub := range r.unsubs {
		unsub()
	}
	r.cancel()
	r.queue.close()
	<-r.writerDone
	r.closeNotices()
	r.logger.Debug("reconciler stopped")
}

// Ready is closed once both collections delivered their first snapshot.
func (r *Reconciler) Ready() <-chan struct{} { return r.ready }

func (r *Reconciler) IsReady() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until Ready or ctx ends.
func (r *Reconciler) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}

func (r *Reconciler) markLoadedLocked() {
	if r.projectsLoaded && r.usersLoaded && !r.IsReady() {
		close(r.ready)
	}
}

func (r *Reconciler) onProjects(projects []models.Project) {
	r.mu.Lock()
	r.projects = r.overlayProjectsLocked(projects)
	r.projectsLoaded = true
	r.markLoadedLocked()
	r.mu.Unlock()

	r.broadcast(ChangeProjects)
}

func (r *Reconciler) onUsers(users []models.User) {
	r.mu.Lock()
	r.users = r.overlayUsersLocked(users)
	r.usersLoaded = true
	r.markLoadedLocked()
	fresh, changed := ReconcileIdentity(r.identity, r.users)
	if changed {
		u := fresh
		r.identity = &u
	}
	r.mu.Unlock()

	r.broadcast(ChangeUsers)
	if !changed {
		return
	}
	r.logger.Info("session identity refreshed", "user_id", fresh.ID)
	r.persistSession(&fresh)
	r.broadcast(ChangeIdentity)
}

// onSessionChange adopts an identity written by another instance.
func (r *Reconciler) onSessionChange(u *models.User) {
	var next *models.User
	if u != nil {
		c := sessionCopy(*u)
		next = &c
	}

	r.mu.Lock()
	if IdentityEqual(r.identity, next) {
		r.mu.Unlock()
		return
	}
	r.identity = next
	r.mu.Unlock()

	r.logger.Info("session identity changed elsewhere", "signed_in", next != nil)
	r.broadcast(ChangeIdentity)
}

func (r *Reconciler) persistSession(u *models.User) {
	if r.session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if err := r.session.Save(ctx, u); err != nil {
		r.emit(Notice{Kind: NoticeSessionFailed, Op: "save_session", ID: u.ID, Err: err})
	}
}
