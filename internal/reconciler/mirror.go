package reconciler

import (
	"context"
	"fmt"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

// Gate is the routing decision the loading state allows.
type Gate string

const (
	GateLoading Gate = "loading"
	GateLogin   Gate = "login"
	GateApp     Gate = "app"
)

// Gate reports where a client should be routed. Until both mirrors are
// loaded the answer is always GateLoading.
func (r *Reconciler) Gate() Gate {
	if !r.IsReady() {
		return GateLoading
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.identity == nil {
		return GateLogin
	}
	return GateApp
}

// Projects returns the mirrored projects, newest first.
func (r *Reconciler) Projects() []models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Project, len(r.projects))
	for i := range r.projects {
		out[i] = r.projects[i].Clone()
	}
	return out
}

func (r *Reconciler) Project(id string) (models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.projects {
		if r.projects[i].ID == id {
			return r.projects[i].Clone(), nil
		}
	}
	return models.Project{}, fmt.Errorf("project %s: %w", id, models.ErrNotFound)
}

func (r *Reconciler) ProjectsByAuthor(authorID string) []models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Project{}
	for i := range r.projects {
		if r.projects[i].AuthorID == authorID {
			out = append(out, r.projects[i].Clone())
		}
	}
	return out
}

func (r *Reconciler) Users() []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, len(r.users))
	for i := range r.users {
		out[i] = r.users[i].Clone()
	}
	return out
}

func (r *Reconciler) User(id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.users {
		if r.users[i].ID == id {
			return r.users[i].Clone(), nil
		}
	}
	return models.User{}, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
}

// FindUserByEmail is the login lookup. It waits for the mirrors so that a
// user who exists is never reported missing because the first snapshot has
// not arrived yet.
func (r *Reconciler) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	if err := r.WaitReady(ctx); err != nil {
		return models.User{}, err
	}
	want := models.NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.users {
		if models.NormalizeEmail(r.users[i].Email) == want {
			return r.users[i].Clone(), nil
		}
	}
	return models.User{}, fmt.Errorf("user with email %s: %w", want, models.ErrNotFound)
}

// Identity returns the signed-in user, or nil.
func (r *Reconciler) Identity() *models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.identity == nil {
		return nil
	}
	u := r.identity.Clone()
	return &u
}

// SignIn makes user the session identity and persists it without the
// credential.
func (r *Reconciler) SignIn(ctx context.Context, user models.User) error {
	u := sessionCopy(user)
	r.mu.Lock()
	r.identity = &u
	r.mu.Unlock()
	r.broadcast(ChangeIdentity)

	if r.session == nil {
		return nil
	}
	if err := r.session.Save(ctx, &u); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func (r *Reconciler) SignOut(ctx context.Context) error {
	r.mu.Lock()
	r.identity = nil
	r.mu.Unlock()
	r.broadcast(ChangeIdentity)

	if r.session == nil {
		return nil
	}
	if err := r.session.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
