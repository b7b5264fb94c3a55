package history

import (
	"github.com/boristopalov/classroom/pkg/agent"
	"github.com/boristopalov/classroom/pkg/environment"
)

// Snapshot is the classroom as it stood at the end of a day. Day 0 is the
// initial state and carries no actions or rewards.
type Snapshot struct {
	Day              int             `json:"day"`
	NumStudents      int             `json:"n_students"`
	NumUngraded      int             `json:"n_ungraded"`
	NumGraded        int             `json:"n_graded"`
	GradingGap       *float64        `json:"grading_gap,omitempty"`
	Teacher          TeacherRecord   `json:"teacher"`
	Students         []StudentRecord `json:"students"`
	AvgStudentReward *float64        `json:"avg_student_reward,omitempty"`
}

type TeacherRecord struct {
	State       agent.TeacherState       `json:"state"`
	Observation agent.TeacherObservation `json:"observation"`
	Action      *agent.TeacherAction     `json:"action,omitempty"`
	Reward      *float64                 `json:"reward,omitempty"`
}

type StudentRecord struct {
	State       agent.StudentState       `json:"state"`
	Observation agent.StudentObservation `json:"observation"`
	Action      *agent.StudentAction     `json:"action,omitempty"`
	Reward      *float64                 `json:"reward,omitempty"`
}

// Step is what was played on one day and what it earned.
type Step struct {
	StudentActions []agent.StudentAction
	TeacherAction  agent.TeacherAction
	Result         environment.StepResult
}

// Take captures the classroom after day. step is nil for the initial snapshot.
func Take(c *environment.Classroom, day int, step *Step) Snapshot {
	snap := Snapshot{
		Day:         day,
		NumStudents: c.NumStudents(),
		NumUngraded: c.NumUngraded(),
		NumGraded:   c.NumGraded(),
		Teacher: TeacherRecord{
			State: c.TeacherState(),
		},
	}
	if gap, ok := c.GradingGap(); ok {
		snap.GradingGap = &gap
	}
	if tobs := c.TeacherObservations(); len(tobs) > 0 {
		snap.Teacher.Observation = tobs[len(tobs)-1]
	}

	states := c.StudentStates()
	obs := c.LatestStudentObservations()
	snap.Students = make([]StudentRecord, len(states))
	for i := range states {
		snap.Students[i] = StudentRecord{State: states[i], Observation: obs[i]}
	}

	if step == nil {
		return snap
	}

	ta := step.TeacherAction
	tr := step.Result.TeacherReward
	snap.Teacher.Action = &ta
	snap.Teacher.Reward = &tr

	total := 0.0
	for i := range snap.Students {
		if i < len(step.StudentActions) {
			a := step.StudentActions[i]
			snap.Students[i].Action = &a
		}
		if i < len(step.Result.StudentRewards) {
			r := step.Result.StudentRewards[i]
			snap.Students[i].Reward = &r
			total += r
		}
	}
	if n := len(step.Result.StudentRewards); n > 0 {
		avg := total / float64(n)
		snap.AvgStudentReward = &avg
	}
	return snap
}
