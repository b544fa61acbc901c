package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

var createdAt = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func project(id string) models.Project {
	return models.Project{
		ID:          id,
		Title:       "Woodcut print",
		Author:      "Esi",
		AuthorID:    "usr-esi",
		Description: "Carved from a cherry block",
		Tags:        []string{"print"},
		Stages:      models.NewStages(createdAt),
		CreatedAt:   createdAt,
	}
}

func user(id, email string) models.User {
	return models.User{ID: id, Name: "Esi", Email: email, Role: "printmaker"}
}

// gatedStore holds back the first users snapshot until release is closed.
type gatedStore struct {
	*models.MemoryRepo
	release chan struct{}
}

func (g *gatedStore) SubscribeUsers(ctx context.Context, fn func([]models.User)) (func(), error) {
	return g.MemoryRepo.SubscribeUsers(ctx, func(us []models.User) {
		<-g.release
		fn(us)
	})
}

// stalledStore holds every project save until release is closed.
type stalledStore struct {
	*models.MemoryRepo
	release chan struct{}
}

func (s *stalledStore) SaveProject(ctx context.Context, p *models.Project) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.MemoryRepo.SaveProject(ctx, p)
}

func start(t *testing.T, store models.Store, sess SessionStore) *Reconciler {
	t.Helper()
	r := New(store, Options{Session: sess, WriteTimeout: time.Second})
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)
	return r
}

func startReady(t *testing.T, store models.Store, sess SessionStore) *Reconciler {
	t.Helper()
	r := start(t, store, sess)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, r.WaitReady(ctx))
	return r
}

func TestGate_LoadingUntilBothSnapshots(t *testing.T) {
	repo := models.NewMemoryRepo()
	u := user("usr-1", "esi@example.com")
	require.NoError(t, repo.SaveUser(context.Background(), &u))

	store := &gatedStore{MemoryRepo: repo, release: make(chan struct{})}
	r := start(t, store, nil)
	t.Cleanup(func() {
		select {
		case <-store.release:
		default:
			close(store.release)
		}
	})

	assert.Equal(t, GateLoading, r.Gate())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.FindUserByEmail(ctx, "esi@example.com")
	require.ErrorIs(t, err, ErrNotReady)
	assert.NotErrorIs(t, err, models.ErrNotFound, "a gated lookup must not look like a missing user")

	close(store.release)
	found, err := r.FindUserByEmail(context.Background(), " ESI@example.com")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", found.ID)
	assert.Equal(t, GateLogin, r.Gate())

	_, err = r.FindUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGate_AppWithCachedIdentity(t *testing.T) {
	sess := session.NewMemoryStore()
	u := user("usr-1", "esi@example.com")
	require.NoError(t, sess.Save(context.Background(), &u))

	r := startReady(t, models.NewMemoryRepo(), sess)
	assert.Equal(t, GateApp, r.Gate())
	require.NotNil(t, r.Identity())
	assert.Equal(t, "usr-1", r.Identity().ID)
}

func TestIdentity_ReplacedWhenRemoteDiffers(t *testing.T) {
	ctx := context.Background()
	repo := models.NewMemoryRepo()
	sess := session.NewMemoryStore()

	cached := user("usr-1", "esi@example.com")
	require.NoError(t, sess.Save(ctx, &cached))
	remote := cached
	remote.Bio = "now teaching linocut"
	remote.PasswordHash = "hash"
	require.NoError(t, repo.SaveUser(ctx, &remote))

	r := startReady(t, repo, sess)
	require.Eventually(t, func() bool {
		id := r.Identity()
		return id != nil && id.Bio == "now teaching linocut"
	}, waitFor, tick)
	assert.Empty(t, r.Identity().PasswordHash)

	require.Eventually(t, func() bool { return sess.Saves() == 2 }, waitFor, tick)
	stored, err := sess.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "now teaching linocut", stored.Bio)

	// an unrelated users snapshot leaves the session alone
	other := user("usr-2", "kojo@example.com")
	require.NoError(t, repo.SaveUser(ctx, &other))
	require.Eventually(t, func() bool { return len(r.Users()) == 2 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, sess.Saves())
}

func TestIdentity_NoWriteWhenEqual(t *testing.T) {
	ctx := context.Background()
	repo := models.NewMemoryRepo()
	sess := session.NewMemoryStore()

	cached := user("usr-1", "esi@example.com")
	require.NoError(t, sess.Save(ctx, &cached))
	remote := cached
	remote.PasswordHash = "hash"
	remote.Following = []string{}
	require.NoError(t, repo.SaveUser(ctx, &remote))

	r := startReady(t, repo, sess)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sess.Saves())
	assert.Equal(t, "usr-1", r.Identity().ID)
}

func TestSessionFollow_AdoptsWithoutWritingBack(t *testing.T) {
	ctx := context.Background()
	sess := session.NewMemoryStore()
	r := startReady(t, models.NewMemoryRepo(), sess)
	assert.Equal(t, GateLogin, r.Gate())

	changes, unwatch := r.Watch(ChangeIdentity)
	defer unwatch()

	u := user("usr-9", "other@example.com")
	require.NoError(t, sess.Save(ctx, &u))
	select {
	case <-changes:
	case <-time.After(waitFor):
		t.Fatal("identity change not broadcast")
	}
	assert.Equal(t, GateApp, r.Gate())
	assert.Equal(t, 1, sess.Saves())

	require.NoError(t, sess.Clear(ctx))
	assert.Nil(t, r.Identity())
}

func TestSignInAndOut(t *testing.T) {
	ctx := context.Background()
	sess := session.NewMemoryStore()
	r := startReady(t, models.NewMemoryRepo(), sess)

	u := user("usr-1", "esi@example.com")
	u.PasswordHash = "hash"
	require.NoError(t, r.SignIn(ctx, u))
	assert.Equal(t, GateApp, r.Gate())
	stored, err := sess.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordHash)

	require.NoError(t, r.SignOut(ctx))
	assert.Equal(t, GateLogin, r.Gate())
	stored, err = sess.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSaveProject_OptimisticThenConfirmed(t *testing.T) {
	repo := models.NewMemoryRepo()
	r := startReady(t, repo, nil)

	w, err := r.SaveProject(project("p-1"))
	require.NoError(t, err)

	got, err := r.Project("p-1")
	require.NoError(t, err, "mirror must change before the write resolves")
	assert.Equal(t, "Woodcut print", got.Title)

	require.NoError(t, w.Wait(context.Background()))
	require.Eventually(t, func() bool { return repo.Writes() == 1 }, waitFor, tick)

	p, err := r.Project("p-1")
	require.NoError(t, err)
	assert.Equal(t, project("p-1"), p)
}

func TestSaveProject_FailedWriteKeepsOptimisticState(t *testing.T) {
	repo := models.NewMemoryRepo()
	r := startReady(t, repo, nil)
	boom := errors.New("store offline")
	repo.FailWrites(boom)

	w, err := r.SaveProject(project("p-1"))
	require.NoError(t, err)
	assert.ErrorIs(t, w.Wait(context.Background()), boom)
	assert.ErrorIs(t, w.Err(), boom)

	select {
	case n := <-r.Notices():
		assert.Equal(t, NoticePersistFailed, n.Kind)
		assert.Equal(t, "p-1", n.ID)
		assert.ErrorIs(t, n, boom)
		assert.ErrorIs(t, n.Err, boom)
		assert.Equal(t, "persist_failed: save_project p-1: store offline", n.Error())
	case <-time.After(waitFor):
		t.Fatal("no notice emitted")
	}

	_, err = r.Project("p-1")
	assert.NoError(t, err, "optimistic state is not rolled back")
	assert.Zero(t, repo.Writes())
}

func TestSaveProject_StaleSnapshotKeepsPendingWrite(t *testing.T) {
	store := &stalledStore{MemoryRepo: models.NewMemoryRepo(), release: make(chan struct{})}
	r := startReady(t, store, nil)

	w, err := r.SaveProject(project("p-1"))
	require.NoError(t, err)

	// a snapshot read before the store applied the save
	r.onProjects([]models.Project{})
	_, err = r.Project("p-1")
	require.NoError(t, err)

	close(store.release)
	require.NoError(t, w.Wait(context.Background()))

	r.mu.RLock()
	pending := len(r.pendingProjects)
	r.mu.RUnlock()
	assert.Zero(t, pending)
	_, err = r.Project("p-1")
	assert.NoError(t, err)
}

func TestSaveProject_ValidationFailsBeforeAnyChange(t *testing.T) {
	repo := models.NewMemoryRepo()
	r := startReady(t, repo, nil)

	p := project("p-1")
	delete(p.Stages, models.PhaseClosure)
	_, err := r.SaveProject(p)
	require.ErrorIs(t, err, models.ErrIncompleteStages)

	_, err = r.Project("p-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, repo.Writes())
}

func TestWrites_PersistInIssueOrder(t *testing.T) {
	repo := models.NewMemoryRepo()
	r := startReady(t, repo, nil)

	var last *Write
	for i := 0; i < 20; i++ {
		p := project("p-1")
		p.Title = fmt.Sprintf("Revision %02d", i)
		w, err := r.SaveProject(p)
		require.NoError(t, err)
		last = w
	}
	require.NoError(t, last.Wait(context.Background()))
	assert.Equal(t, 20, repo.Writes())

	require.Eventually(t, func() bool {
		p, err := r.Project("p-1")
		return err == nil && p.Title == "Revision 19"
	}, waitFor, tick)
}

func TestUpdateProject_ConcurrentUpdatesAllApplied(t *testing.T) {
	repo := models.NewMemoryRepo()
	seed := project("p-1")
	require.NoError(t, repo.SaveProject(context.Background(), &seed))
	r := startReady(t, repo, nil)

	const n = 20
	writes := make(chan *Write, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := r.UpdateProject("p-1", func(p *models.Project) error {
				p.Tags = append(p.Tags, fmt.Sprintf("t-%02d", i))
				return nil
			})
			assert.NoError(t, err)
			writes <- w
		}(i)
	}
	wg.Wait()
	close(writes)

	got, err := r.Project("p-1")
	require.NoError(t, err)
	assert.Len(t, got.Tags, n+1)

	for w := range writes {
		require.NoError(t, w.Wait(context.Background()))
	}
	assert.Equal(t, n+1, repo.Writes())
	got, err = r.Project("p-1")
	require.NoError(t, err)
	assert.Len(t, got.Tags, n+1, "the last write to reach the store carries every update")
}

func TestUpdateProject_RejectedChangeLeavesMirror(t *testing.T) {
	repo := models.NewMemoryRepo()
	seed := project("p-1")
	require.NoError(t, repo.SaveProject(context.Background(), &seed))
	r := startReady(t, repo, nil)
	denied := errors.New("denied")

	_, err := r.UpdateProject("p-1", func(p *models.Project) error {
		p.Title = "changed"
		return denied
	})
	assert.ErrorIs(t, err, denied)

	_, err = r.UpdateProject("p-1", func(p *models.Project) error {
		p.Title = "x"
		return nil
	})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = r.UpdateProject("p-missing", func(*models.Project) error { return nil })
	assert.ErrorIs(t, err, models.ErrNotFound)

	got, err := r.Project("p-1")
	require.NoError(t, err)
	assert.Equal(t, seed.Title, got.Title)
	assert.Equal(t, 1, repo.Writes())
}

func TestInsertUser_RejectsTakenEmail(t *testing.T) {
	repo := models.NewMemoryRepo()
	r := startReady(t, repo, nil)

	w, err := r.InsertUser(user("usr-1", "esi@example.com"))
	require.NoError(t, err)

	_, err = r.InsertUser(user("usr-2", " ESI@example.com"))
	assert.ErrorIs(t, err, models.ErrDuplicate)
	_, err = r.User("usr-2")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, w.Wait(context.Background()))
	assert.Equal(t, 1, repo.Writes())
}

func TestUpdateUsers_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := models.NewMemoryRepo()
	u := user("usr-1", "esi@example.com")
	u.PasswordHash = "hash"
	require.NoError(t, repo.SaveUser(ctx, &u))
	r := startReady(t, repo, nil)

	_, err := r.UpdateUsers([]string{"usr-1", "usr-missing"}, func(us []*models.User) error {
		us[0].Bio = "never"
		return nil
	})
	require.ErrorIs(t, err, models.ErrNotFound)
	got, err := r.User("usr-1")
	require.NoError(t, err)
	assert.Empty(t, got.Bio)

	w, err := r.UpdateUser("usr-1", func(u *models.User) error {
		u.Bio = "edited"
		return nil
	})
	require.NoError(t, err)
	got, err = r.User("usr-1")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Bio)
	assert.Equal(t, "hash", got.PasswordHash)
	require.NoError(t, w.Wait(ctx))
}

func TestDeleteProject(t *testing.T) {
	repo := models.NewMemoryRepo()
	seed := project("p-1")
	require.NoError(t, repo.SaveProject(context.Background(), &seed))
	r := startReady(t, repo, nil)

	d := r.DeleteProject("p-1")
	_, err := r.Project("p-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, d.Wait(context.Background()))
	require.NoError(t, r.DeleteProject("p-1").Wait(context.Background()))
}

func TestSaveUser_KeepsMirroredCredential(t *testing.T) {
	ctx := context.Background()
	repo := models.NewMemoryRepo()
	u := user("usr-1", "esi@example.com")
	u.PasswordHash = "hash"
	require.NoError(t, repo.SaveUser(ctx, &u))
	r := startReady(t, repo, nil)

	edit := user("usr-1", "esi@example.com")
	edit.Bio = "edited"
	w, err := r.SaveUser(edit)
	require.NoError(t, err)

	got, err := r.User("usr-1")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Bio)
	assert.Equal(t, "hash", got.PasswordHash)
	require.NoError(t, w.Wait(ctx))
}

func TestProjectsByAuthorAndOrdering(t *testing.T) {
	r := startReady(t, models.NewMemoryRepo(), nil)

	older := project("p-old")
	newer := project("p-new")
	newer.CreatedAt = createdAt.Add(time.Hour)
	other := project("p-other")
	other.AuthorID = "usr-else"
	other.CreatedAt = createdAt.Add(-time.Hour)

	var last *Write
	for _, p := range []models.Project{older, newer, other} {
		w, err := r.SaveProject(p)
		require.NoError(t, err)
		last = w
	}
	require.NoError(t, last.Wait(context.Background()))

	ids := func(ps []models.Project) []string {
		out := []string{}
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}
	require.Eventually(t, func() bool { return len(r.Projects()) == 3 }, waitFor, tick)
	assert.Equal(t, []string{"p-new", "p-old", "p-other"}, ids(r.Projects()))
	assert.Equal(t, []string{"p-new", "p-old"}, ids(r.ProjectsByAuthor("usr-esi")))
}

func TestWatch_CoalescesChanges(t *testing.T) {
	r := startReady(t, models.NewMemoryRepo(), nil)
	changes, unwatch := r.Watch(ChangeProjects)
	defer unwatch()

	var last *Write
	for i := 0; i < 5; i++ {
		w, err := r.SaveProject(project(fmt.Sprintf("p-%d", i)))
		require.NoError(t, err)
		last = w
	}
	select {
	case <-changes:
	case <-time.After(waitFor):
		t.Fatal("no wake-up")
	}
	require.NoError(t, last.Wait(context.Background()))
	require.Eventually(t, func() bool { return len(r.Projects()) == 5 }, waitFor, tick)
}

func TestStop_DrainsQueueAndRejectsLaterWrites(t *testing.T) {
	repo := models.NewMemoryRepo()
	r := New(repo, Options{})
	require.NoError(t, r.Start(context.Background()))

	w, err := r.SaveProject(project("p-1"))
	require.NoError(t, err)
	r.Stop()
	r.Stop()

	require.NoError(t, w.Wait(context.Background()))
	assert.Equal(t, 1, repo.Writes())

	late, err := r.SaveProject(project("p-2"))
	require.NoError(t, err)
	assert.ErrorIs(t, late.Wait(context.Background()), ErrStopped)

	_, open := <-r.Notices()
	assert.False(t, open)
	assert.ErrorIs(t, r.Start(context.Background()), ErrStopped)
}

func TestStop_WithoutStart(t *testing.T) {
	r := New(models.NewMemoryRepo(), Options{})
	r.Stop()
	_, open := <-r.Notices()
	assert.False(t, open)
}
