package models

import (
	"fmt"
	"strings"
	"time"
)

// Phase is one of the five fixed lifecycle stages of a project.
type Phase string

const (
	PhaseInitiation Phase = "initiation"
	PhasePlanning   Phase = "planning"
	PhaseExecution  Phase = "execution"
	PhaseControl    Phase = "control"
	PhaseClosure    Phase = "closure"
)

// Phases lists every phase in lifecycle order.
var Phases = []Phase{
	PhaseInitiation,
	PhasePlanning,
	PhaseExecution,
	PhaseControl,
	PhaseClosure,
}

const (
	MinStageRating = 0
	MaxStageRating = 20
	MaxTotalScore  = MaxStageRating * 5
)

// ParsePhase accepts a phase name in any letter case ("Execution", "execution").
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Phases {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
}

// Title returns the display name of the phase.
func (p Phase) Title() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

type StageData struct {
	Phase         Phase     `bson:"phase" json:"phase"`
	Description   string    `bson:"description" json:"description"`
	EvidenceLinks []string  `bson:"evidence_links" json:"evidence_links"`
	PeerRating    int       `bson:"peer_rating" json:"peer_rating"`
	MyRating      *int      `bson:"my_rating,omitempty" json:"my_rating,omitempty"`
	LastUpdated   time.Time `bson:"last_updated" json:"last_updated"`
}

func (s StageData) Clone() StageData {
	out := s
	if s.EvidenceLinks != nil {
		out.EvidenceLinks = append([]string(nil), s.EvidenceLinks...)
	}
	if s.MyRating != nil {
		v := *s.MyRating
		out.MyRating = &v
	}
	return out
}

// Stages maps every phase to its stage record.
type Stages map[Phase]StageData

// NewStages returns the five empty stages of a freshly created project.
func NewStages(now time.Time) Stages {
	stages := make(Stages, len(Phases))
	for _, p := range Phases {
		stages[p] = StageData{
			Phase:         p,
			EvidenceLinks: []string{},
			LastUpdated:   now,
		}
	}
	return stages
}

// Validate enforces that exactly the five phases are present and that every
// rating is in range.
func (s Stages) Validate() error {
	if len(s) != len(Phases) {
		return fmt.Errorf("%w: expected %d phases, got %d", ErrIncompleteStages, len(Phases), len(s))
	}
	for _, p := range Phases {
		stage, ok := s[p]
		if !ok {
			return fmt.Errorf("%w: missing phase %s", ErrIncompleteStages, p)
		}
		if stage.Phase != p {
			return fmt.Errorf("%w: stage under %s is labelled %s", ErrIncompleteStages, p, stage.Phase)
		}
		if stage.PeerRating < MinStageRating || stage.PeerRating > MaxStageRating {
			return fmt.Errorf("peer rating of %s out of range: %d", p, stage.PeerRating)
		}
	}
	return nil
}

func (s Stages) Clone() Stages {
	if s == nil {
		return nil
	}
	out := make(Stages, len(s))
	for k, v := range s {
		out[k] = v.Clone()
	}
	return out
}

type Project struct {
	ID                 string    `bson:"_id" json:"id"`
	Title              string    `bson:"title" json:"title" validate:"required,min=4,max=200"`
	Author             string    `bson:"author" json:"author"`
	AuthorID           string    `bson:"author_id" json:"author_id" validate:"required"`
	CoverImage         string    `bson:"cover_image" json:"cover_image"`
	Description        string    `bson:"description" json:"description" validate:"required,min=11"`
	Tags               []string  `bson:"tags" json:"tags"`
	TotalHumanityScore int       `bson:"total_humanity_score" json:"total_humanity_score" validate:"min=0,max=100"`
	Stages             Stages    `bson:"stages" json:"stages"`
	Verified           bool      `bson:"verified" json:"verified"`
	CreatedAt          time.Time `bson:"created_at,omitempty" json:"created_at"`
}

func (p Project) Clone() Project {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	out.Stages = p.Stages.Clone()
	return out
}

// HasTag reports whether the project carries tag, ignoring case and a leading '#'.
func (p Project) HasTag(tag string) bool {
	want := normalizeTag(tag)
	for _, t := range p.Tags {
		if normalizeTag(t) == want {
			return true
		}
	}
	return false
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
}
