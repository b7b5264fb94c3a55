package environment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/boristopalov/classroom/pkg/agent"
	"github.com/boristopalov/classroom/pkg/core"
)

// AssignmentStatus is a position in the assignment lifecycle.
type AssignmentStatus int

const (
	Unsubmitted AssignmentStatus = iota
	Submitted
	Graded
)

func (s AssignmentStatus) String() string {
	switch s {
	case Unsubmitted:
		return "unsubmitted"
	case Submitted:
		return "submitted"
	case Graded:
		return "graded"
	default:
		return "unknown"
	}
}

// Assignment is one piece of work issued to one student. Only the Classroom
// moves it through its lifecycle.
type Assignment struct {
	ID            uuid.UUID
	Difficulty    float64
	StudentIdx    int
	TimeIssued    int
	Submitted     bool
	Quality       float64
	TimeSubmitted int
	IsGraded      bool
	FinalGrade    float64
	TimeGraded    int
}

// NewAssignment creates an unsubmitted assignment for student studentIdx.
func NewAssignment(difficulty float64, studentIdx, t int) (*Assignment, error) {
	if !(difficulty >= 0 && difficulty <= 1) {
		return nil, fmt.Errorf("%w: difficulty %v not in [0, 1]", core.ErrInvalidState, difficulty)
	}
	if studentIdx < 0 {
		return nil, fmt.Errorf("%w: student index %d is negative", core.ErrInvalidState, studentIdx)
	}
	return &Assignment{
		ID:         uuid.New(),
		Difficulty: difficulty,
		StudentIdx: studentIdx,
		TimeIssued: t,
	}, nil
}

// Status returns where the assignment is in its lifecycle.
func (a *Assignment) Status() AssignmentStatus {
	switch {
	case a.IsGraded:
		return Graded
	case a.Submitted:
		return Submitted
	default:
		return Unsubmitted
	}
}

// Submit freezes the quality of the work from the owner's competencies and
// the time they spent on it.
func (a *Assignment) Submit(s agent.StudentState, t int) error {
	if a.Submitted {
		return fmt.Errorf("assignment %s: %w", a.ID, core.ErrAlreadySubmitted)
	}
	a.Quality = agent.Quality(s.G, s.TimeWorked)
	a.Submitted = true
	a.TimeSubmitted = t
	return nil
}

// Grade computes the grade the given teacher would award, without recording it.
func (a *Assignment) Grade(t agent.TeacherState) (float64, error) {
	if !a.Submitted {
		return 0, fmt.Errorf("assignment %s: %w", a.ID, core.ErrNotSubmitted)
	}
	grade := a.Quality + 15*(t.MH+1) - 15*a.Difficulty
	return min(100, max(0, grade)), nil
}

// markGraded records the grade awarded by t at step now.
func (a *Assignment) markGraded(t agent.TeacherState, now int) (float64, error) {
	if a.IsGraded {
		return 0, fmt.Errorf("assignment %s: %w", a.ID, core.ErrAlreadyGraded)
	}
	grade, err := a.Grade(t)
	if err != nil {
		return 0, err
	}
	a.FinalGrade = grade
	a.IsGraded = true
	a.TimeGraded = now
	return grade, nil
}
