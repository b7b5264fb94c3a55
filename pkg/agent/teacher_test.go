package agent

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/classroom/pkg/core"
)

func TestTeacherAction_SimplexTolerance(t *testing.T) {
	_, err := NewTeacherAction(0.333, 0.333, 0.333)
	assert.NoError(t, err, "a sum of 0.999 is within floating tolerance")

	_, err = NewTeacherAction(0.3, 0.3, 0.39)
	assert.ErrorIs(t, err, core.ErrInvalidAction)

	_, err = NewTeacherAction(1.2, -0.2, 0)
	assert.ErrorIs(t, err, core.ErrInvalidAction)

	_, err = NewTeacherAction(math.NaN(), math.NaN(), math.NaN())
	assert.ErrorIs(t, err, core.ErrInvalidAction)
	_, err = NewTeacherAction(0, 1, math.NaN())
	assert.ErrorIs(t, err, core.ErrInvalidAction)

	_, err = NewTeacherAction(0, 1, 0)
	assert.NoError(t, err)
}

func TestNewTeacherState_Bounds(t *testing.T) {
	_, err := NewTeacherState(0, 0.5, 1.5, 3, 0)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	_, err = NewTeacherState(0, 0.5, 0.5, -1, 0)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	_, err = NewTeacherState(0, 0.5, 0.5, 3, -2)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	for _, s := range []TeacherState{
		{MH: math.NaN(), Prod: 0.5, G: 0.5},
		{MH: 0, Prod: math.NaN(), G: 0.5},
		{MH: 0, Prod: 0.5, G: math.NaN()},
	} {
		assert.ErrorIs(t, s.Validate(), core.ErrInvalidState)
	}
	_, err = NewTeacherState(-1, 0, 0, 0, 0)
	assert.NoError(t, err)
}

func TestAssignmentsGraded(t *testing.T) {
	s := TeacherState{FreeTime: 7, G: 0}
	assert.Equal(t, 7, AssignmentsGraded(s, TeacherAction{Grading: 1}))

	s.G = 1
	assert.Equal(t, 28, AssignmentsGraded(s, TeacherAction{Grading: 1}))

	s = TeacherState{FreeTime: 3, G: 0.5}
	// 0.5 * 3 * 2.5 = 3.75
	assert.Equal(t, 4, AssignmentsGraded(s, TeacherAction{Rest: 0.5, Grading: 0.5}))
	assert.Zero(t, AssignmentsGraded(s, TeacherAction{Rest: 1}))
}

func TestTeacherTransition(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	m := NewTeacher()
	s := TeacherState{MH: 0.2, Prod: 0.5, G: 0.4, FreeTime: 2, NumAssignments: 10}
	a := TeacherAction{Rest: 0.2, Grading: 0.5, PD: 0.3}

	d, err := m.Transition(rng, s, a)
	require.NoError(t, err)
	require.Equal(t, 8, d.Len())

	graded := AssignmentsGraded(s, a)
	for _, o := range d.Outcomes() {
		sp := o.Value
		assert.InDelta(t, 1.0/8, o.Weight, 1e-12)
		assert.InDelta(t, 0.2+0.02-0.05, sp.MH, 1e-12)
		assert.InDelta(t, 0.5+0.05-0.025, sp.Prod, 1e-12)
		assert.InDelta(t, 0.4+0.3e-3, sp.G, 1e-12)
		assert.Equal(t, 10-graded, sp.NumAssignments)
	}
}

func TestTeacherTransition_Burnout(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	s := TeacherState{MH: -0.5, Prod: 0.5, G: 0.5, FreeTime: 7, NumAssignments: 2}
	a := TeacherAction{Grading: 1}

	d, err := NewTeacher().Transition(rng, s, a)
	require.NoError(t, err)
	sp := d.Outcomes()[0].Value
	assert.InDelta(t, -0.6, sp.MH, 1e-12)
	assert.InDelta(t, 0.6*0.95, sp.Prod, 1e-12)
	assert.InDelta(t, 0.5*0.99, sp.G, 1e-12)
	assert.Zero(t, sp.NumAssignments, "backlog is floored at zero")
}

func TestTeacherTransition_Clamps(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	s := TeacherState{MH: 0.98, Prod: 0.02, G: 1, FreeTime: 0}
	d, err := NewTeacher().Transition(rng, s, TeacherAction{Rest: 0.5, PD: 0.5})
	require.NoError(t, err)
	for _, o := range d.Outcomes() {
		require.NoError(t, o.Value.Validate())
		assert.Equal(t, 1.0, o.Value.MH)
		assert.Equal(t, 0.0, o.Value.Prod)
		assert.Equal(t, 1.0, o.Value.G)
	}
}

func TestTeacherReward(t *testing.T) {
	m := NewTeacher()
	s := TeacherState{MH: 0, Prod: 0.5, G: 0.5}
	a := TeacherAction{Rest: 0.5, Grading: 0.5}

	sp := TeacherState{MH: 0.1, Prod: 0.4, G: 0.5, FreeTime: 3, NumAssignments: 10}
	assert.InDelta(t, 0.1+0.4*1.5, m.Reward(s, a, sp), 1e-12)

	sp.FreeTime = 0
	assert.InDelta(t, 0.1+0.4*1.5-1, m.Reward(s, a, sp), 1e-12)

	sp.FreeTime = 3
	sp.NumAssignments = 130
	assert.InDelta(t, 0.1+0.4*1.5-1, m.Reward(s, a, sp), 1e-12)
}

func TestTeacherObservation(t *testing.T) {
	sp := TeacherState{FreeTime: 5, NumAssignments: 12}
	d, err := NewTeacher().Observation(nil, TeacherAction{Rest: 1}, sp)
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())
	assert.Equal(t, TeacherObservation{FreeTime: 5, NumAssignments: 12}, d.Outcomes()[0].Value)
}
