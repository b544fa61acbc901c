package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC)

func subscribeProjects(t *testing.T, repo *MemoryRepo) <-chan []Project {
	t.Helper()
	ch := make(chan []Project, 16)
	stop, err := repo.SubscribeProjects(context.Background(), func(ps []Project) { ch <- ps })
	require.NoError(t, err)
	t.Cleanup(stop)
	return ch
}

// latest waits for a snapshot and then drains any newer ones.
func latest[T any](t *testing.T, ch <-chan []T) []T {
	t.Helper()
	var snap []T
	select {
	case snap = <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
	for {
		select {
		case snap = <-ch:
		case <-time.After(50 * time.Millisecond):
			return snap
		}
	}
}

func TestMemoryRepo_InitialSnapshotIsEmpty(t *testing.T) {
	repo := NewMemoryRepo()
	assert.Empty(t, latest(t, subscribeProjects(t, repo)))
}

func TestMemoryRepo_SaveRoundTrip(t *testing.T) {
	repo := NewMemoryRepo()
	ch := subscribeProjects(t, repo)
	latest(t, ch)

	p := validProject()
	p.CreatedAt = clock
	require.NoError(t, repo.SaveProject(context.Background(), &p))

	snap := latest(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, p, snap[0])
}

func TestMemoryRepo_AssignsCreatedAtOnInsert(t *testing.T) {
	repo := NewMemoryRepo()
	repo.SetClock(func() time.Time { return clock })
	ch := subscribeProjects(t, repo)

	p := validProject()
	require.NoError(t, repo.SaveProject(context.Background(), &p))
	snap := latest(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, clock, snap[0].CreatedAt)

	// a later save without a creation time keeps the stored one
	repo.SetClock(func() time.Time { return clock.Add(time.Hour) })
	p.Title = "Renamed notebook"
	require.NoError(t, repo.SaveProject(context.Background(), &p))
	snap = latest(t, ch)
	assert.Equal(t, clock, snap[0].CreatedAt)
	assert.Equal(t, "Renamed notebook", snap[0].Title)
}

func TestMemoryRepo_SaveIsIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	ch := subscribeProjects(t, repo)

	p := validProject()
	p.CreatedAt = clock
	require.NoError(t, repo.SaveProject(context.Background(), &p))
	first := latest(t, ch)
	require.NoError(t, repo.SaveProject(context.Background(), &p))
	second := latest(t, ch)
	assert.Equal(t, first, second)
}

func TestMemoryRepo_MergeKeepsUnspecifiedFields(t *testing.T) {
	repo := NewMemoryRepo()
	ch := subscribeProjects(t, repo)

	p := validProject()
	p.CreatedAt = clock
	p.CoverImage = "https://img/cover.jpg"
	rating := 12
	st := p.Stages[PhaseExecution]
	st.MyRating = &rating
	p.Stages[PhaseExecution] = st
	require.NoError(t, repo.SaveProject(context.Background(), &p))

	partial := p.Clone()
	partial.Tags = []string{"replaced"}
	st = partial.Stages[PhaseExecution]
	st.MyRating = nil
	st.PeerRating = 8
	partial.Stages[PhaseExecution] = st
	require.NoError(t, repo.SaveProject(context.Background(), &partial))

	snap := latest(t, ch)
	require.Len(t, snap, 1)
	got := snap[0]
	assert.Equal(t, []string{"replaced"}, got.Tags)
	assert.Equal(t, 8, got.Stages[PhaseExecution].PeerRating)
	require.NotNil(t, got.Stages[PhaseExecution].MyRating)
	assert.Equal(t, 12, *got.Stages[PhaseExecution].MyRating)
}

func TestMemoryRepo_SaveClearsEmptiedFields(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	projects := subscribeProjects(t, repo)
	users := make(chan []User, 16)
	stop, err := repo.SubscribeUsers(ctx, func(us []User) { users <- us })
	require.NoError(t, err)
	t.Cleanup(stop)

	p := validProject()
	p.CoverImage = "https://img.example/cover.jpg"
	require.NoError(t, repo.SaveProject(ctx, &p))
	p.CoverImage = ""
	require.NoError(t, repo.SaveProject(ctx, &p))

	snap := latest(t, projects)
	require.Len(t, snap, 1)
	assert.Equal(t, "", snap[0].CoverImage)

	u := User{
		ID:       "usr-1",
		Name:     "Esi",
		Email:    "esi@example.com",
		PhotoURL: "https://img.example/esi.jpg",
		Contacts: &Contacts{Phone: "+233 20 000 0000", Website: "https://esi.example"},
	}
	require.NoError(t, repo.SaveUser(ctx, &u))
	u.PhotoURL = ""
	u.Contacts = &Contacts{Website: "https://esi.example"}
	require.NoError(t, repo.SaveUser(ctx, &u))

	got := latest(t, users)
	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].PhotoURL)
	require.NotNil(t, got[0].Contacts)
	assert.Equal(t, Contacts{Website: "https://esi.example"}, *got[0].Contacts)
}

func TestMemoryRepo_RejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	first := User{ID: "usr-1", Name: "Esi", Email: "esi@example.com"}
	require.NoError(t, repo.SaveUser(ctx, &first))
	require.NoError(t, repo.SaveUser(ctx, &first), "saving the same user again is fine")

	second := User{ID: "usr-2", Name: "Esi", Email: "esi@example.com"}
	assert.ErrorIs(t, repo.SaveUser(ctx, &second), ErrDuplicate)
	assert.Equal(t, 2, repo.Writes())
}

func TestMemoryRepo_OrdersNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	ch := subscribeProjects(t, repo)

	for i, id := range []string{"p-a", "p-b", "p-c"} {
		p := validProject()
		p.ID = id
		p.CreatedAt = clock.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.SaveProject(context.Background(), &p))
	}

	snap := latest(t, ch)
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"p-c", "p-b", "p-a"}, []string{snap[0].ID, snap[1].ID, snap[2].ID})
}

func TestMemoryRepo_DeleteIsIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	ch := subscribeProjects(t, repo)

	p := validProject()
	p.CreatedAt = clock
	require.NoError(t, repo.SaveProject(context.Background(), &p))
	require.NoError(t, repo.DeleteProject(context.Background(), p.ID))
	require.NoError(t, repo.DeleteProject(context.Background(), p.ID))
	assert.Empty(t, latest(t, ch))
}

func TestMemoryRepo_FailWrites(t *testing.T) {
	repo := NewMemoryRepo()
	boom := errors.New("offline")
	repo.FailWrites(boom)

	p := validProject()
	assert.ErrorIs(t, repo.SaveProject(context.Background(), &p), boom)
	assert.ErrorIs(t, repo.DeleteProject(context.Background(), p.ID), boom)
	assert.Zero(t, repo.Writes())

	repo.FailWrites(nil)
	require.NoError(t, repo.SaveProject(context.Background(), &p))
	assert.Equal(t, 1, repo.Writes())
}

func TestMemoryRepo_UsersKeepCredentialOnPartialSave(t *testing.T) {
	repo := NewMemoryRepo()
	ch := make(chan []User, 16)
	stop, err := repo.SubscribeUsers(context.Background(), func(us []User) { ch <- us })
	require.NoError(t, err)
	defer stop()

	u := User{ID: "usr-1", Name: "Ama", Email: "ama@example.com", PasswordHash: "hash"}
	require.NoError(t, repo.SaveUser(context.Background(), &u))

	u.PasswordHash = ""
	u.Bio = "potter"
	u.Contacts = &Contacts{Website: "https://ama.example"}
	require.NoError(t, repo.SaveUser(context.Background(), &u))

	snap := latest(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "hash", snap[0].PasswordHash)
	assert.Equal(t, "potter", snap[0].Bio)
	assert.Equal(t, "https://ama.example", snap[0].Contacts.Website)
}

func TestMemoryRepo_UnsubscribeStopsDelivery(t *testing.T) {
	repo := NewMemoryRepo()
	ch := make(chan []Project, 16)
	stop, err := repo.SubscribeProjects(context.Background(), func(ps []Project) { ch <- ps })
	require.NoError(t, err)
	latest(t, ch)
	stop()
	stop()

	p := validProject()
	require.NoError(t, repo.SaveProject(context.Background(), &p))
	select {
	case <-ch:
		t.Fatal("snapshot delivered after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}
