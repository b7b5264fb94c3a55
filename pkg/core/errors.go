package core

import "errors"

var (
	// ErrInvalidState is returned when a state field is outside its legal range.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidAction is returned when an action violates its validity constraints.
	ErrInvalidAction = errors.New("invalid action")
	// ErrNoUnsubmitted is returned when a student submits with no outstanding assignment.
	ErrNoUnsubmitted = errors.New("student has no unsubmitted assignments")
	// ErrAlreadySubmitted is returned when submitting an assignment a second time.
	ErrAlreadySubmitted = errors.New("assignment already submitted")
	// ErrNotSubmitted is returned when grading an assignment that was never submitted.
	ErrNotSubmitted = errors.New("assignment must be submitted before grading")
	// ErrAlreadyGraded is returned when grading an assignment a second time.
	ErrAlreadyGraded = errors.New("assignment already graded")
	// ErrStudentCount is returned when the number of actions does not match the number of students.
	ErrStudentCount = errors.New("action count does not match student count")
	// ErrInvalidWeight is returned when an outcome weight is negative or not finite.
	ErrInvalidWeight = errors.New("invalid outcome weight")
	// ErrEmptyDistribution is returned when sampling a distribution with no weight.
	ErrEmptyDistribution = errors.New("cannot sample an empty distribution")
)
