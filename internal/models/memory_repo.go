package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// MemoryRepo is an in-process Store with the same merge and ordering
// semantics as the Mongo store. Snapshots are delivered in write order, and
// a write returns only after every subscriber has seen a snapshot that
// includes it.
type MemoryRepo struct {
	mu       sync.Mutex
	projects map[string]bson.M
	users    map[string]bson.M
	failErr  error
	writes   int
	now      func() time.Time

	// deliverMu serializes snapshot delivery and guards subs.
	deliverMu sync.Mutex
	subs      map[*memorySub]struct{}
}

type memorySub struct {
	ctx        context.Context
	collection string
	deliver    func()
	removed    bool
	done       chan struct{}
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		projects: map[string]bson.M{},
		users:    map[string]bson.M{},
		subs:     map[*memorySub]struct{}{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FailWrites makes every following save and delete return err without
// touching the store. A nil err restores normal behaviour.
func (m *MemoryRepo) FailWrites(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

// SetClock replaces the clock used for server-assigned creation times.
func (m *MemoryRepo) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Writes counts the writes the store accepted.
func (m *MemoryRepo) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryRepo) SubscribeProjects(ctx context.Context, onSnapshot func([]Project)) (func(), error) {
	return m.subscribe(ctx, ProjectColName, func() {
		projects, err := m.projectSnapshot()
		if err == nil {
			onSnapshot(projects)
		}
	})
}

func (m *MemoryRepo) SubscribeUsers(ctx context.Context, onSnapshot func([]User)) (func(), error) {
	return m.subscribe(ctx, UserColName, func() {
		users, err := m.userSnapshot()
		if err == nil {
			onSnapshot(users)
		}
	})
}

// subscribe registers the subscriber and sends the initial snapshot from its
// own goroutine.
func (m *MemoryRepo) subscribe(ctx context.Context, collection string, deliver func()) (func(), error) {
	sub := &memorySub{
		ctx:        ctx,
		collection: collection,
		deliver:    deliver,
		done:       make(chan struct{}),
	}

	m.deliverMu.Lock()
	m.subs[sub] = struct{}{}
	m.deliverMu.Unlock()

	go func() {
		defer close(sub.done)
		m.deliverMu.Lock()
		defer m.deliverMu.Unlock()
		if !sub.removed && sub.ctx.Err() == nil {
			sub.deliver()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.deliverMu.Lock()
			sub.removed = true
			delete(m.subs, sub)
			m.deliverMu.Unlock()
			<-sub.done
		})
	}, nil
}

// publish hands a fresh snapshot of collection to every subscriber.
func (m *MemoryRepo) publish(collection string) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	for sub := range m.subs {
		if sub.collection != collection || sub.ctx.Err() != nil {
			continue
		}
		sub.deliver()
	}
}

func (m *MemoryRepo) SaveProject(ctx context.Context, project *Project) error {
	if project == nil {
		return fmt.Errorf("project is nil")
	}
	return m.save(ctx, ProjectColName, m.projects, project, true, nil)
}

func (m *MemoryRepo) SaveUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	return m.save(ctx, UserColName, m.users, user, false, m.uniqueEmail)
}

// uniqueEmail plays the part of the email_unique index.
func (m *MemoryRepo) uniqueEmail(id string, set bson.M) error {
	email, _ := set["email"].(string)
	for other, stored := range m.users {
		if other == id {
			continue
		}
		if e, _ := stored["email"].(string); e == email {
			return fmt.Errorf("user with email %s: %w", email, ErrDuplicate)
		}
	}
	return nil
}

func (m *MemoryRepo) save(ctx context.Context, collection string, docs map[string]bson.M, v interface{}, assignCreatedAt bool, check func(id string, set bson.M) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.failErr != nil {
		m.mu.Unlock()
		return m.failErr
	}

	id, set, onInsert, err := upsertUpdate(v, assignCreatedAt, m.now())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if check != nil {
		if err := check(id, set); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	merged := applyMerge(docs[id], set, onInsert)
	merged["_id"] = id
	docs[id] = merged
	m.writes++
	m.mu.Unlock()

	m.publish(collection)
	return nil
}

func (m *MemoryRepo) DeleteProject(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.failErr != nil {
		m.mu.Unlock()
		return m.failErr
	}
	delete(m.projects, id)
	m.writes++
	m.mu.Unlock()

	m.publish(ProjectColName)
	return nil
}

func (m *MemoryRepo) projectSnapshot() ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	projects := make([]Project, 0, len(m.projects))
	for _, doc := range m.projects {
		var p Project
		if err := fromDocument(doc, &p); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.After(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}

func (m *MemoryRepo) userSnapshot() ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]User, 0, len(m.users))
	for _, doc := range m.users {
		var u User
		if err := fromDocument(doc, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}
