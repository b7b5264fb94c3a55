package environment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/classroom/pkg/agent"
	"github.com/boristopalov/classroom/pkg/core"
)

func TestNewAssignment_Validates(t *testing.T) {
	_, err := NewAssignment(1.5, 0, 0)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	_, err = NewAssignment(math.NaN(), 0, 0)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	_, err = NewAssignment(0.5, -1, 0)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	a, err := NewAssignment(0.5, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, Unsubmitted, a.Status())
	assert.Equal(t, 6, a.TimeIssued)
	assert.NotEmpty(t, a.ID.String())
}

func TestAssignment_Lifecycle(t *testing.T) {
	a, err := NewAssignment(0.4, 0, 0)
	require.NoError(t, err)
	teacher := agent.TeacherState{MH: 0.2}

	_, err = a.Grade(teacher)
	assert.ErrorIs(t, err, core.ErrNotSubmitted)
	_, err = a.markGraded(teacher, 1)
	assert.ErrorIs(t, err, core.ErrNotSubmitted)

	student := agent.StudentState{G: []float64{0.4, 0.6}, TimeWorked: 4}
	require.NoError(t, a.Submit(student, 2))
	assert.Equal(t, Submitted, a.Status())
	assert.InDelta(t, 70.0, a.Quality, 1e-9)
	assert.Equal(t, 2, a.TimeSubmitted)
	assert.ErrorIs(t, a.Submit(student, 3), core.ErrAlreadySubmitted)

	// 70 + 15*1.2 - 15*0.4
	grade, err := a.Grade(teacher)
	require.NoError(t, err)
	assert.InDelta(t, 82.0, grade, 1e-9)

	grade, err = a.markGraded(teacher, 5)
	require.NoError(t, err)
	assert.InDelta(t, 82.0, a.FinalGrade, 1e-9)
	assert.Equal(t, 5, a.TimeGraded)
	assert.Equal(t, Graded, a.Status())

	_, err = a.markGraded(teacher, 6)
	assert.ErrorIs(t, err, core.ErrAlreadyGraded)
	assert.Equal(t, 5, a.TimeGraded)
}

func TestAssignment_GradeIsClamped(t *testing.T) {
	a, err := NewAssignment(0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, a.Submit(agent.StudentState{G: []float64{1}, TimeWorked: 10}, 0))

	grade, err := a.Grade(agent.TeacherState{MH: 1})
	require.NoError(t, err)
	assert.Equal(t, 100.0, grade)

	b, err := NewAssignment(1, 0, 0)
	require.NoError(t, err)
	require.NoError(t, b.Submit(agent.StudentState{G: []float64{0}}, 0))
	grade, err = b.Grade(agent.TeacherState{MH: -1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, grade)
}
