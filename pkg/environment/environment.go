package environment

import "github.com/boristopalov/classroom/pkg/agent"

// Environment defines the rules and mechanics of agent interactions
type Environment interface {
	// Step advances every agent by one discrete time step t
	Step(studentActions []agent.StudentAction, teacherAction agent.TeacherAction, t int) (StepResult, error)
	// Reset resets the environment to initial conditions
	Reset() error
	// NumStudents returns the number of student agents
	NumStudents() int
}

// StepResult holds the rewards earned during one step.
type StepResult struct {
	StudentRewards []float64
	TeacherReward  float64
	NumGraded      int
}

var _ Environment = (*Classroom)(nil)
