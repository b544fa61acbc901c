package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

// SaveProject replaces or inserts p in the local mirror at once and queues
// the remote upsert. Validation failures return before anything changes.
func (r *Reconciler) SaveProject(p models.Project) (*Write, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	w := r.putProjectLocked(p.Clone())
	r.mu.Unlock()
	r.broadcast(ChangeProjects)
	return w, nil
}

// UpdateProject applies fn to the mirrored project with id and queues the
// result in one step under the mirror lock, so concurrent updates of the same
// project each see the previous one. If fn or validation fails nothing
// changes.
func (r *Reconciler) UpdateProject(id string, fn func(*models.Project) error) (*Write, error) {
	r.mu.Lock()
	i := r.projectIndexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	p := r.projects[i].Clone()
	if err := fn(&p); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	p.ID = id
	if err := p.Validate(); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	w := r.putProjectLocked(p)
	r.mu.Unlock()
	r.broadcast(ChangeProjects)
	return w, nil
}

func (r *Reconciler) putProjectLocked(p models.Project) *Write {
	if i := r.projectIndexLocked(p.ID); i >= 0 {
		r.projects[i] = p.Clone()
	} else {
		r.projects = append(r.projects, p.Clone())
		sortProjects(r.projects)
	}
	local := p.Clone()
	seq := r.nextSeqLocked()
	r.pendingProjects[p.ID] = pendingProject{seq: seq, project: &local}

	return r.enqueueLocked("save_project", p.ID, func(ctx context.Context) error {
		return r.store.SaveProject(ctx, &p)
	}, func() { r.settleProject(p.ID, seq) }, func() { r.forgetProjectLocked(p.ID, seq) })
}

// DeleteProject drops the project from the mirror and queues the remote
// delete. Deleting an unknown id is not an error.
func (r *Reconciler) DeleteProject(id string) *Write {
	r.mu.Lock()
	if i := r.projectIndexLocked(id); i >= 0 {
		r.projects = append(r.projects[:i:i], r.projects[i+1:]...)
	}
	seq := r.nextSeqLocked()
	r.pendingProjects[id] = pendingProject{seq: seq}
	w := r.enqueueLocked("delete_project", id, func(ctx context.Context) error {
		return r.store.DeleteProject(ctx, id)
	}, func() { r.settleProject(id, seq) }, func() { r.forgetProjectLocked(id, seq) })
	r.mu.Unlock()
	r.broadcast(ChangeProjects)
	return w
}

// SaveUser replaces or inserts u in the mirror and queues the remote upsert.
// A user without a credential keeps the mirrored one, as the merge would.
func (r *Reconciler) SaveUser(u models.User) (*Write, error) {
	if err := models.Validate.Struct(u); err != nil {
		return nil, err
	}

	r.mu.Lock()
	w := r.putUserLocked(u.Clone())
	r.mu.Unlock()
	r.broadcast(ChangeUsers)
	return w, nil
}

// InsertUser adds a new user unless the mirror already holds one with the
// same email. The check and the insert happen under one lock.
func (r *Reconciler) InsertUser(u models.User) (*Write, error) {
	if err := models.Validate.Struct(u); err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(u.Email)

	r.mu.Lock()
	for _, existing := range r.users {
		if models.NormalizeEmail(existing.Email) == email {
			r.mu.Unlock()
			return nil, fmt.Errorf("user with email %s: %w", email, models.ErrDuplicate)
		}
	}
	w := r.putUserLocked(u.Clone())
	r.mu.Unlock()
	r.broadcast(ChangeUsers)
	return w, nil
}

// UpdateUser applies fn to the mirrored user with id and queues the result
// in one locked step. If fn or validation fails nothing changes.
func (r *Reconciler) UpdateUser(id string, fn func(*models.User) error) (*Write, error) {
	ws, err := r.UpdateUsers([]string{id}, func(users []*models.User) error {
		return fn(users[0])
	})
	if err != nil {
		return nil, err
	}
	return ws[0], nil
}

// UpdateUsers is UpdateUser for several users changed together. fn gets the
// users in the order of ids. Either all of them are queued or none.
func (r *Reconciler) UpdateUsers(ids []string, fn func([]*models.User) error) ([]*Write, error) {
	r.mu.Lock()
	users := make([]*models.User, len(ids))
	for n, id := range ids {
		i := r.userIndexLocked(id)
		if i < 0 {
			r.mu.Unlock()
			return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
		}
		u := r.users[i].Clone()
		users[n] = &u
	}
	if err := fn(users); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	for n, u := range users {
		u.ID = ids[n]
		if err := models.Validate.Struct(*u); err != nil {
			r.mu.Unlock()
			return nil, err
		}
	}
	ws := make([]*Write, len(users))
	for n, u := range users {
		ws[n] = r.putUserLocked(u.Clone())
	}
	r.mu.Unlock()
	r.broadcast(ChangeUsers)
	return ws, nil
}

func (r *Reconciler) putUserLocked(u models.User) *Write {
	if i := r.userIndexLocked(u.ID); i >= 0 {
		local := u.Clone()
		if local.PasswordHash == "" {
			local.PasswordHash = r.users[i].PasswordHash
		}
		r.users[i] = local
	} else {
		r.users = append(r.users, u.Clone())
	}
	seq := r.nextSeqLocked()
	r.pendingUsers[u.ID] = pendingUser{seq: seq, user: u.Clone()}

	return r.enqueueLocked("save_user", u.ID, func(ctx context.Context) error {
		return r.store.SaveUser(ctx, &u)
	}, func() { r.settleUser(u.ID, seq) }, func() { r.forgetUserLocked(u.ID, seq) })
}

func (r *Reconciler) projectIndexLocked(id string) int {
	for i := range r.projects {
		if r.projects[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) userIndexLocked(id string) int {
	for i := range r.users {
		if r.users[i].ID == id {
			return i
		}
	}
	return -1
}

// enqueueLocked hands op to the writer while r.mu is held, so writes reach
// the queue in the order their local changes were made. settle runs once the
// store answered, whatever the outcome. drop runs, still under r.mu, when the
// queue no longer accepts writes.
func (r *Reconciler) enqueueLocked(name, id string, run func(ctx context.Context) error, settle, drop func()) *Write {
	w := newWrite()
	if !r.queue.push(writeOp{name: name, id: id, run: run, settle: settle, handle: w}) {
		drop()
		w.resolve(ErrStopped)
	}
	return w
}

// runWriter persists queued writes one at a time, in issue order. Writes
// queued before Stop are still sent.
func (r *Reconciler) runWriter() {
	defer close(r.writerDone)
	for {
		op, ok, closed := r.queue.pop()
		if !ok {
			if closed {
				return
			}
			<-r.queue.signal
			continue
		}
		r.execute(op)
	}
}

func (r *Reconciler) execute(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	start := time.Now()
	err := op.run(ctx)
	if op.settle != nil {
		op.settle()
	}
	if err != nil {
		r.logger.Error("remote write failed",
			"op", op.name,
			"id", op.id,
			"error", err,
		)
		r.emit(Notice{Kind: NoticePersistFailed, Op: op.name, ID: op.id, Err: err})
	} else {
		r.logger.Debug("remote write acknowledged",
			"op", op.name,
			"id", op.id,
			"duration", time.Since(start),
		)
	}
	op.handle.resolve(err)
}
