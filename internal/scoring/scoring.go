// Package scoring turns peer votes into stage ratings and the project-level
// humanity score.
package scoring

import (
	"errors"
	"fmt"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

var ErrVoteOutOfRange = errors.New("vote must be between 0 and 20")

const (
	// previous rating weight in the rolling average
	historyWeight = 4
	voteWeight    = 1

	syntheticCeiling = 6
	hybridCeiling    = 13
	organicBadgeFrom = 80
)

// NextPeerRating is the weighted rolling average round((4*old + vote) / 5).
func NextPeerRating(old, vote int) int {
	n := historyWeight*old + voteWeight*vote
	d := historyWeight + voteWeight
	// half rounds up, numbers are never negative
	return (2*n + d) / (2 * d)
}

// ApplyVote folds vote into the stage's peer rating and records it as the
// caller's own rating. An out-of-range vote leaves the stage unchanged.
func ApplyVote(stage models.StageData, vote int) (models.StageData, error) {
	if vote < models.MinStageRating || vote > models.MaxStageRating {
		return stage, fmt.Errorf("%w: got %d", ErrVoteOutOfRange, vote)
	}
	out := stage.Clone()
	out.PeerRating = clamp(NextPeerRating(stage.PeerRating, vote), models.MinStageRating, models.MaxStageRating)
	out.MyRating = &vote
	return out, nil
}

// RecomputeTotal sums the peer ratings of the five phases. Phases missing
// from stages count as zero.
func RecomputeTotal(stages models.Stages) int {
	total := 0
	for _, p := range models.Phases {
		total += stages[p].PeerRating
	}
	return clamp(total, 0, models.MaxTotalScore)
}

// CastVote applies vote to one phase of project and refreshes its total.
func CastVote(project models.Project, phase models.Phase, vote int) (models.Project, error) {
	stage, ok := project.Stages[phase]
	if !ok {
		return project, fmt.Errorf("%w: %s", models.ErrUnknownPhase, phase)
	}
	next, err := ApplyVote(stage, vote)
	if err != nil {
		return project, err
	}
	out := project.Clone()
	out.Stages[phase] = next
	out.TotalHumanityScore = RecomputeTotal(out.Stages)
	return out, nil
}

type Label string

const (
	LabelSynthetic Label = "synthetic"
	LabelHybrid    Label = "hybrid"
	LabelOrganic   Label = "organic"

	BadgeOrganic    = "organic"
	BadgeAutomation = "automation signals"
)

// StageLabel classifies a single 0-20 stage score.
func StageLabel(score int) Label {
	switch {
	case score <= syntheticCeiling:
		return LabelSynthetic
	case score <= hybridCeiling:
		return LabelHybrid
	default:
		return LabelOrganic
	}
}

// ProjectBadge classifies a 0-100 project total.
func ProjectBadge(total int) string {
	if total > organicBadgeFrom {
		return BadgeOrganic
	}
	return BadgeAutomation
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
