package models

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProject() Project {
	return Project{
		ID:          "p-1",
		Title:       "Hand-bound notebook",
		Author:      "Ama",
		AuthorID:    "usr-1",
		Description: "Stitched signatures with linen thread",
		Tags:        []string{"#Craft", "paper"},
		Stages:      NewStages(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
	}
}

func TestParsePhase(t *testing.T) {
	for _, in := range []string{"Execution", "execution", " EXECUTION "} {
		p, err := ParsePhase(in)
		require.NoError(t, err)
		assert.Equal(t, PhaseExecution, p)
	}
	_, err := ParsePhase("launch")
	assert.ErrorIs(t, err, ErrUnknownPhase)
	assert.Equal(t, "Closure", PhaseClosure.Title())
}

func TestNewStages(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	stages := NewStages(now)
	require.NoError(t, stages.Validate())
	for _, p := range Phases {
		st := stages[p]
		assert.Equal(t, p, st.Phase)
		assert.Zero(t, st.PeerRating)
		assert.Nil(t, st.MyRating)
		assert.NotNil(t, st.EvidenceLinks)
		assert.Equal(t, now, st.LastUpdated)
	}
}

func TestStagesValidate(t *testing.T) {
	stages := NewStages(time.Now())
	delete(stages, PhaseControl)
	assert.ErrorIs(t, stages.Validate(), ErrIncompleteStages)

	stages = NewStages(time.Now())
	st := stages[PhasePlanning]
	st.PeerRating = 21
	stages[PhasePlanning] = st
	assert.Error(t, stages.Validate())

	stages = NewStages(time.Now())
	st = stages[PhasePlanning]
	st.Phase = PhaseClosure
	stages[PhasePlanning] = st
	assert.ErrorIs(t, stages.Validate(), ErrIncompleteStages)
}

func TestProjectValidate(t *testing.T) {
	p := validProject()
	require.NoError(t, p.Validate())

	p.Title = "abc"
	var verrs validator.ValidationErrors
	require.True(t, errors.As(p.Validate(), &verrs))
	assert.Equal(t, "Title", verrs[0].Field())
}

func TestProjectClone_IsDeep(t *testing.T) {
	p := validProject()
	c := p.Clone()
	c.Tags[0] = "changed"
	st := c.Stages[PhaseInitiation]
	st.EvidenceLinks = append(st.EvidenceLinks, "https://x")
	c.Stages[PhaseInitiation] = st

	assert.Equal(t, "#Craft", p.Tags[0])
	assert.Empty(t, p.Stages[PhaseInitiation].EvidenceLinks)
}

func TestHasTag(t *testing.T) {
	p := validProject()
	assert.True(t, p.HasTag("craft"))
	assert.True(t, p.HasTag("#PAPER"))
	assert.False(t, p.HasTag("ink"))
}
