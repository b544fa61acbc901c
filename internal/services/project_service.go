package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joshua-takyi/humanfolio/internal/helpers"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/reconciler"
	"github.com/joshua-takyi/humanfolio/internal/scoring"
)

type StageInput struct {
	Description   string   `json:"description"`
	EvidenceLinks []string `json:"evidence_links"`
}

type ProjectInput struct {
	Title       string                `json:"title" validate:"required,min=4,max=200"`
	Description string                `json:"description" validate:"required,min=11"`
	CoverImage  string                `json:"cover_image"`
	Tags        []string              `json:"tags" validate:"max=20"`
	Stages      map[string]StageInput `json:"stages"`
}

type ListFilter struct {
	Tag      string
	Query    string
	AuthorID string
}

type ProjectService struct {
	rec    *reconciler.Reconciler
	images helpers.ImageStore
	now    func() time.Time
}

func NewProjectService(rec *reconciler.Reconciler, images helpers.ImageStore) *ProjectService {
	if images == nil {
		images = helpers.InlineStore{}
	}
	return &ProjectService{
		rec:    rec,
		images: images,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Create publishes a new project with five empty stages and a zero score,
// then waits for the store to acknowledge it.
func (ps *ProjectService) Create(ctx context.Context, author models.User, in ProjectInput) (*models.Project, error) {
	stageInputs, err := parseStageInputs(in.Stages)
	if err != nil {
		return nil, err
	}
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}

	now := ps.now()
	project := models.Project{
		ID:                 helpers.NewProjectID(),
		Title:              strings.TrimSpace(in.Title),
		Author:             author.Name,
		AuthorID:           author.ID,
		CoverImage:         in.CoverImage,
		Description:        strings.TrimSpace(in.Description),
		Tags:               normalizeTags(in.Tags),
		TotalHumanityScore: 0,
		Stages:             models.NewStages(now),
		Verified:           false,
		CreatedAt:          now,
	}
	for phase, st := range stageInputs {
		stage := project.Stages[phase]
		stage.Description = strings.TrimSpace(st.Description)
		stage.EvidenceLinks = cleanLinks(st.EvidenceLinks)
		project.Stages[phase] = stage
	}

	w, err := ps.rec.SaveProject(project)
	if err != nil {
		return nil, err
	}
	if err := w.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: project: %w", ErrPersistFailed, err)
	}
	return &project, nil
}

// Update edits the author's own project. Authorship, ratings, the score, the
// verified flag and the creation time are kept. A stage whose content changed
// gets a fresh last_updated.
func (ps *ProjectService) Update(ctx context.Context, actorID, id string, in ProjectInput) (*models.Project, error) {
	stageInputs, err := parseStageInputs(in.Stages)
	if err != nil {
		return nil, err
	}
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	now := ps.now()
	var updated models.Project
	_, err = ps.rec.UpdateProject(id, func(project *models.Project) error {
		if project.AuthorID != actorID {
			return ErrForbidden
		}
		project.Title = strings.TrimSpace(in.Title)
		project.Description = strings.TrimSpace(in.Description)
		project.CoverImage = in.CoverImage
		project.Tags = normalizeTags(in.Tags)
		for phase, st := range stageInputs {
			stage := project.Stages[phase]
			desc := strings.TrimSpace(st.Description)
			links := cleanLinks(st.EvidenceLinks)
			if desc != stage.Description || !equalStrings(links, stage.EvidenceLinks) {
				stage.Description = desc
				stage.EvidenceLinks = links
				stage.LastUpdated = now
			}
			project.Stages[phase] = stage
		}
		updated = project.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (ps *ProjectService) Delete(ctx context.Context, actorID, id string) error {
	project, err := ps.rec.Project(id)
	if err != nil {
		return err
	}
	if project.AuthorID != actorID {
		return ErrForbidden
	}
	ps.rec.DeleteProject(id)
	return nil
}

// Vote folds a 0-20 vote into one phase and saves the project optimistically.
// Concurrent votes on one project are applied one after another.
func (ps *ProjectService) Vote(ctx context.Context, id, phase string, vote int) (*models.Project, error) {
	p, err := models.ParsePhase(phase)
	if err != nil {
		return nil, err
	}
	var voted models.Project
	_, err = ps.rec.UpdateProject(id, func(project *models.Project) error {
		next, err := scoring.CastVote(*project, p, vote)
		if err != nil {
			return err
		}
		*project = next
		voted = next.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &voted, nil
}

// AddEvidence appends a link, or an uploaded image turned into an embeddable
// reference, to one phase of the author's project.
func (ps *ProjectService) AddEvidence(ctx context.Context, actorID, id, phase, link string, image []byte) (*models.Project, error) {
	p, err := models.ParsePhase(phase)
	if err != nil {
		return nil, err
	}
	link = strings.TrimSpace(link)
	if link == "" && len(image) == 0 {
		return nil, ErrNoEvidence
	}
	if link != "" {
		if err := models.Validate.Var(link, "url"); err != nil {
			return nil, err
		}
	}
	// Checked again under the lock; this only avoids a useless upload.
	project, err := ps.rec.Project(id)
	if err != nil {
		return nil, err
	}
	if project.AuthorID != actorID {
		return nil, ErrForbidden
	}

	if len(image) > 0 {
		link, err = ps.images.Store(ctx, image, helpers.EvidenceFolder)
		if err != nil {
			return nil, err
		}
	}

	var updated models.Project
	_, err = ps.rec.UpdateProject(id, func(project *models.Project) error {
		if project.AuthorID != actorID {
			return ErrForbidden
		}
		stage := project.Stages[p]
		stage.EvidenceLinks = append(stage.EvidenceLinks, link)
		stage.LastUpdated = ps.now()
		project.Stages[p] = stage
		updated = project.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (ps *ProjectService) Get(id string) (*models.Project, error) {
	project, err := ps.rec.Project(id)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// List returns mirrored projects, newest first, narrowed by the filter. Query
// matches title, description, author and tags without regard to case.
func (ps *ProjectService) List(f ListFilter) []models.Project {
	var projects []models.Project
	if f.AuthorID != "" {
		projects = ps.rec.ProjectsByAuthor(f.AuthorID)
	} else {
		projects = ps.rec.Projects()
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.Project, 0, len(projects))
	for _, p := range projects {
		if f.Tag != "" && !p.HasTag(f.Tag) {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesQuery(p models.Project, query string) bool {
	fields := []string{p.Title, p.Description, p.Author}
	fields = append(fields, p.Tags...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func parseStageInputs(in map[string]StageInput) (map[models.Phase]StageInput, error) {
	out := make(map[models.Phase]StageInput, len(in))
	for key, st := range in {
		phase, err := models.ParsePhase(key)
		if err != nil {
			return nil, err
		}
		out[phase] = st
	}
	return out, nil
}

func normalizeTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(strings.TrimPrefix(t, "#"))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func cleanLinks(links []string) []string {
	out := []string{}
	for _, l := range links {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
