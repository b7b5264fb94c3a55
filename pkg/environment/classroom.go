package environment

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/boristopalov/classroom/pkg/agent"
	"github.com/boristopalov/classroom/pkg/core"
)

const (
	defaultCompetencies = 8
	gradeFeedbackScale  = 1e-4
)

// Classroom couples many student processes and one teacher process through
// a shared pool of assignments. It owns all assignment collections and every
// agent's state and observation history; nothing else mutates them.
type Classroom struct {
	student *agent.Student
	teacher *agent.Teacher

	seed            uint64
	rng             *rand.Rand
	numStudents     int
	assignmentEvery int
	numCompetencies int

	studentStates []agent.StudentState
	studentObs    [][]agent.StudentObservation
	teacherState  agent.TeacherState
	teacherObs    []agent.TeacherObservation

	// unsubmitted[i] is kept in issuance order; submissions take the oldest
	unsubmitted [][]*Assignment
	ungraded    []*Assignment
	graded      []*Assignment
	issued      []int
}

type ClassroomParams struct {
	Seed         uint64
	Competencies int
}

type ClassroomOption func(*ClassroomParams)

// WithSeed seeds the classroom's random generator.
func WithSeed(seed uint64) ClassroomOption {
	return func(p *ClassroomParams) {
		p.Seed = seed
	}
}

// WithCompetencies sets the length of each student's competency vector.
func WithCompetencies(n int) ClassroomOption {
	return func(p *ClassroomParams) {
		p.Competencies = n
	}
}

// NewClassroom creates a classroom of numStudents that issues one assignment
// per student every assignmentEvery steps.
func NewClassroom(numStudents, assignmentEvery int, opts ...ClassroomOption) (*Classroom, error) {
	if numStudents < 1 {
		return nil, fmt.Errorf("need at least one student, got %d", numStudents)
	}
	if assignmentEvery < 1 {
		return nil, fmt.Errorf("assignment interval must be positive, got %d", assignmentEvery)
	}

	params := &ClassroomParams{Seed: 1, Competencies: defaultCompetencies}
	for _, opt := range opts {
		opt(params)
	}
	if params.Competencies < 1 {
		return nil, fmt.Errorf("need at least one competency, got %d", params.Competencies)
	}

	c := &Classroom{
		student:         agent.NewStudent(),
		teacher:         agent.NewTeacher(),
		seed:            params.Seed,
		numStudents:     numStudents,
		assignmentEvery: assignmentEvery,
		numCompetencies: params.Competencies,
	}
	if err := c.Reset(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reset reseeds the generator and draws fresh initial states, clearing all
// assignments and histories.
func (c *Classroom) Reset() error {
	c.rng = rand.New(rand.NewPCG(c.seed, c.seed))

	c.studentStates = make([]agent.StudentState, c.numStudents)
	c.studentObs = make([][]agent.StudentObservation, c.numStudents)
	for i := range c.numStudents {
		s, o, err := c.initialStudent()
		if err != nil {
			return fmt.Errorf("initialize student %d: %w", i, err)
		}
		c.studentStates[i] = s
		c.studentObs[i] = []agent.StudentObservation{o}
	}

	s, o, err := c.initialTeacher()
	if err != nil {
		return fmt.Errorf("initialize teacher: %w", err)
	}
	c.teacherState = s
	c.teacherObs = []agent.TeacherObservation{o}

	c.unsubmitted = make([][]*Assignment, c.numStudents)
	c.ungraded = nil
	c.graded = nil
	c.issued = make([]int, c.numStudents)
	return nil
}

func (c *Classroom) initialStudent() (agent.StudentState, agent.StudentObservation, error) {
	mh := c.rng.Float64()*2 - 1
	prod := c.rng.Float64()
	g := make([]float64, c.numCompetencies)
	for i := range g {
		g[i] = c.rng.Float64()
	}
	freeTime := c.randomFreeTime()

	s, err := agent.NewStudentState(mh, prod, g, freeTime, 0, 0, nil)
	if err != nil {
		return agent.StudentState{}, agent.StudentObservation{}, err
	}
	return s, agent.StudentObservation{FreeTime: freeTime}, nil
}

func (c *Classroom) initialTeacher() (agent.TeacherState, agent.TeacherObservation, error) {
	mh := c.rng.Float64()*2 - 1
	prod := c.rng.Float64()
	g := c.rng.Float64()
	freeTime := c.randomFreeTime()

	s, err := agent.NewTeacherState(mh, prod, g, freeTime, 0)
	if err != nil {
		return agent.TeacherState{}, agent.TeacherObservation{}, err
	}
	return s, agent.TeacherObservation{FreeTime: freeTime}, nil
}

func (c *Classroom) randomFreeTime() int {
	return int(math.Round(c.rng.Float64() * agent.MaxFreeTime))
}

// Step runs StudentStep followed by TeacherStep for time step t.
func (c *Classroom) Step(studentActions []agent.StudentAction, teacherAction agent.TeacherAction, t int) (StepResult, error) {
	// checked up front so a bad teacher action cannot leave a half-applied step
	if err := teacherAction.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("teacher: %w", err)
	}

	rewards, err := c.StudentStep(studentActions, t)
	if err != nil {
		return StepResult{}, err
	}
	before := len(c.graded)
	teacherReward, err := c.TeacherStep(teacherAction, t)
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{
		StudentRewards: rewards,
		TeacherReward:  teacherReward,
		NumGraded:      len(c.graded) - before,
	}, nil
}

// StudentStep issues assignments when t falls on the cadence, then applies
// each student's action in index order. Submissions join the shared grading
// queue. All preconditions are checked before any state changes.
func (c *Classroom) StudentStep(actions []agent.StudentAction, t int) ([]float64, error) {
	if len(actions) != c.numStudents {
		return nil, fmt.Errorf("%w: got %d actions for %d students", core.ErrStudentCount, len(actions), c.numStudents)
	}

	issuing := t%c.assignmentEvery == 0
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("student %d: %w", i, err)
		}
		if !a.Submit {
			continue
		}
		available := len(c.unsubmitted[i])
		if issuing {
			available++
		}
		if available == 0 {
			return nil, fmt.Errorf("student %d: %w", i, core.ErrNoUnsubmitted)
		}
	}

	if issuing {
		if err := c.issue(t); err != nil {
			return nil, err
		}
	}

	rewards := make([]float64, c.numStudents)
	for i, a := range actions {
		r, err := c.stepStudent(i, a, t)
		if err != nil {
			return nil, fmt.Errorf("student %d: %w", i, err)
		}
		rewards[i] = r
	}
	return rewards, nil
}

// issue creates one assignment per student sharing a single random difficulty.
func (c *Classroom) issue(t int) error {
	difficulty := c.rng.Float64()
	for i := range c.numStudents {
		a, err := NewAssignment(difficulty, i, t)
		if err != nil {
			return err
		}
		c.unsubmitted[i] = append(c.unsubmitted[i], a)
		c.issued[i]++
	}
	return nil
}

func (c *Classroom) stepStudent(i int, a agent.StudentAction, t int) (float64, error) {
	s := c.studentStates[i].Clone()
	s.NumAssignments = len(c.unsubmitted[i])

	if a.Submit {
		asg := c.unsubmitted[i][0]
		if err := asg.Submit(s, t); err != nil {
			return 0, err
		}
		c.unsubmitted[i][0] = nil
		c.unsubmitted[i] = c.unsubmitted[i][1:]
		c.ungraded = append(c.ungraded, asg)
	}

	next, err := c.student.Transition(c.rng, s, a)
	if err != nil {
		return 0, err
	}
	sp, err := next.Sample(c.rng)
	if err != nil {
		return 0, err
	}
	sp.NumAssignments = len(c.unsubmitted[i])
	reward := c.student.Reward(s, a, sp)

	obs, err := c.student.Observation(c.rng, a, sp)
	if err != nil {
		return 0, err
	}
	o, err := obs.Sample(c.rng)
	if err != nil {
		return 0, err
	}

	c.studentObs[i] = append(c.studentObs[i], o)
	c.studentStates[i] = sp
	return reward, nil
}

// TeacherStep transitions the teacher, reconciles its backlog with the real
// queue, and grades as many queued assignments as the pre-step state and
// action allow, oldest first. Work submitted earlier in the same step is
// eligible.
func (c *Classroom) TeacherStep(a agent.TeacherAction, t int) (float64, error) {
	pre := c.teacherState

	next, err := c.teacher.Transition(c.rng, pre, a)
	if err != nil {
		return 0, fmt.Errorf("teacher: %w", err)
	}
	sp, err := next.Sample(c.rng)
	if err != nil {
		return 0, err
	}
	sp.NumAssignments = len(c.ungraded)
	reward := c.teacher.Reward(pre, a, sp)

	if err := c.grade(agent.AssignmentsGraded(pre, a), pre, t); err != nil {
		return 0, err
	}

	obs, err := c.teacher.Observation(c.rng, a, sp)
	if err != nil {
		return 0, err
	}
	o, err := obs.Sample(c.rng)
	if err != nil {
		return 0, err
	}
	c.teacherState = sp
	c.teacherObs = append(c.teacherObs, o)
	return reward, nil
}

// grade drains at most n assignments from the head of the queue. Each grade
// nudges one random competency of the owner and is written back into the
// owner's latest observation.
func (c *Classroom) grade(n int, grader agent.TeacherState, t int) error {
	for ; n > 0 && len(c.ungraded) > 0; n-- {
		asg := c.ungraded[0]
		c.ungraded[0] = nil
		c.ungraded = c.ungraded[1:]

		grade, err := asg.markGraded(grader, t)
		if err != nil {
			return err
		}
		c.graded = append(c.graded, asg)

		idx := asg.StudentIdx
		st := c.studentStates[idx].Clone()
		k := c.rng.IntN(len(st.G))
		st.G[k] = min(1, st.G[k]+grade/100*gradeFeedbackScale)
		c.studentStates[idx] = st

		history := c.studentObs[idx]
		history[len(history)-1] = history[len(history)-1].WithGrade(grade)
	}
	return nil
}

// NumStudents returns the number of students.
func (c *Classroom) NumStudents() int {
	return c.numStudents
}

// AssignmentEvery returns the issuance cadence in steps.
func (c *Classroom) AssignmentEvery() int {
	return c.assignmentEvery
}

// StudentState returns a copy of student i's current state.
func (c *Classroom) StudentState(i int) agent.StudentState {
	return c.studentStates[i].Clone()
}

// StudentStates returns copies of every student's current state.
func (c *Classroom) StudentStates() []agent.StudentState {
	out := make([]agent.StudentState, len(c.studentStates))
	for i, s := range c.studentStates {
		out[i] = s.Clone()
	}
	return out
}

// StudentObservations returns a copy of student i's observation history.
func (c *Classroom) StudentObservations(i int) []agent.StudentObservation {
	out := make([]agent.StudentObservation, len(c.studentObs[i]))
	copy(out, c.studentObs[i])
	return out
}

// LatestStudentObservations returns the most recent observation of every student.
func (c *Classroom) LatestStudentObservations() []agent.StudentObservation {
	out := make([]agent.StudentObservation, len(c.studentObs))
	for i, h := range c.studentObs {
		out[i] = h[len(h)-1]
	}
	return out
}

// TeacherState returns the teacher's current state.
func (c *Classroom) TeacherState() agent.TeacherState {
	return c.teacherState
}

// TeacherObservations returns a copy of the teacher's observation history.
func (c *Classroom) TeacherObservations() []agent.TeacherObservation {
	out := make([]agent.TeacherObservation, len(c.teacherObs))
	copy(out, c.teacherObs)
	return out
}

// Unsubmitted returns copies of student i's unsubmitted assignments, oldest first.
func (c *Classroom) Unsubmitted(i int) []Assignment {
	return copyAssignments(c.unsubmitted[i])
}

// Ungraded returns copies of the grading queue, head first.
func (c *Classroom) Ungraded() []Assignment {
	return copyAssignments(c.ungraded)
}

// Graded returns copies of the graded archive in grading order.
func (c *Classroom) Graded() []Assignment {
	return copyAssignments(c.graded)
}

// NumUngraded returns the length of the grading queue.
func (c *Classroom) NumUngraded() int {
	return len(c.ungraded)
}

// NumGraded returns the size of the graded archive.
func (c *Classroom) NumGraded() int {
	return len(c.graded)
}

// GradingGap returns the mean number of steps between submission and
// grading over the graded archive. ok is false when nothing is graded yet.
func (c *Classroom) GradingGap() (gap float64, ok bool) {
	if len(c.graded) == 0 {
		return 0, false
	}
	total := 0
	for _, a := range c.graded {
		total += a.TimeGraded - a.TimeSubmitted
	}
	return float64(total) / float64(len(c.graded)), true
}

// Issued returns how many assignments student i has ever been issued.
func (c *Classroom) Issued(i int) int {
	return c.issued[i]
}

func copyAssignments(in []*Assignment) []Assignment {
	out := make([]Assignment, len(in))
	for i, a := range in {
		out[i] = *a
	}
	return out
}
