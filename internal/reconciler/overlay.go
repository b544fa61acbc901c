package reconciler

import (
	"sort"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

// pendingProject is a project write the store has not answered yet. A nil
// project marks a delete.
type pendingProject struct {
	seq     uint64
	project *models.Project
}

type pendingUser struct {
	seq  uint64
	user models.User
}

func (r *Reconciler) nextSeqLocked() uint64 {
	r.seq++
	return r.seq
}

// overlayProjectsLocked lays unanswered writes over a snapshot so a snapshot
// taken before the store applied them does not undo the optimistic state.
func (r *Reconciler) overlayProjectsLocked(snapshot []models.Project) []models.Project {
	if len(r.pendingProjects) == 0 {
		return snapshot
	}
	out := make([]models.Project, 0, len(snapshot)+len(r.pendingProjects))
	seen := make(map[string]bool, len(r.pendingProjects))
	for _, p := range snapshot {
		pending, ok := r.pendingProjects[p.ID]
		if !ok {
			out = append(out, p)
			continue
		}
		seen[p.ID] = true
		if pending.project != nil {
			local := pending.project.Clone()
			if local.CreatedAt.IsZero() {
				local.CreatedAt = p.CreatedAt
			}
			out = append(out, local)
		}
	}
	for id, pending := range r.pendingProjects {
		if seen[id] || pending.project == nil {
			continue
		}
		out = append(out, pending.project.Clone())
	}
	sortProjects(out)
	return out
}

func (r *Reconciler) overlayUsersLocked(snapshot []models.User) []models.User {
	if len(r.pendingUsers) == 0 {
		return snapshot
	}
	out := make([]models.User, 0, len(snapshot)+len(r.pendingUsers))
	seen := make(map[string]bool, len(r.pendingUsers))
	for _, u := range snapshot {
		pending, ok := r.pendingUsers[u.ID]
		if !ok {
			out = append(out, u)
			continue
		}
		seen[u.ID] = true
		local := pending.user.Clone()
		if local.PasswordHash == "" {
			local.PasswordHash = u.PasswordHash
		}
		out = append(out, local)
	}
	for id, pending := range r.pendingUsers {
		if !seen[id] {
			out = append(out, pending.user.Clone())
		}
	}
	return out
}

// settleProject forgets the pending entry for id unless a newer write
// replaced it.
func (r *Reconciler) settleProject(id string, seq uint64) {
	r.mu.Lock()
	r.forgetProjectLocked(id, seq)
	r.mu.Unlock()
}

func (r *Reconciler) forgetProjectLocked(id string, seq uint64) {
	if p, ok := r.pendingProjects[id]; ok && p.seq == seq {
		delete(r.pendingProjects, id)
	}
}

func (r *Reconciler) settleUser(id string, seq uint64) {
	r.mu.Lock()
	r.forgetUserLocked(id, seq)
	r.mu.Unlock()
}

func (r *Reconciler) forgetUserLocked(id string, seq uint64) {
	if u, ok := r.pendingUsers[id]; ok && u.seq == seq {
		delete(r.pendingUsers, id)
	}
}

// sortProjects orders newest first with id as the tie breaker, the order the
// store delivers.
func sortProjects(projects []models.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.After(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})
}
