package agent

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/boristopalov/classroom/pkg/core"
)

const (
	// MaxFreeTime is the largest number of free hours in a day.
	MaxFreeTime = 7
	// SimplexTolerance is how far a time allocation may sum away from 1.
	SimplexTolerance = 5e-3

	studentDiscount     = 0.95
	studentNoiseSamples = 10
	gradeNoiseSamples   = 20
	gradeNoiseStdDev    = 10.0
	submitMHBoost       = 0.01
	overwhelmThreshold  = 5
	overwhelmPenalty    = 0.1
)

// Cholesky factor of the mood/productivity noise covariance
// [[0.1, -0.05], [-0.05, 0.1]].
var (
	noiseL11 = math.Sqrt(0.1)
	noiseL21 = -0.05 / math.Sqrt(0.1)
	noiseL22 = math.Sqrt(0.1 - 0.05*0.05/0.1)
)

// StudentState is the latent state of one learner.
//
//	MH              mental health, in [-1, 1]
//	Prod            productivity, in [0, 1]
//	G               competencies, each in [0, 1]
//	FreeTime        free hours today, in [0, 7]
//	NumAssignments  outstanding unsubmitted assignments
//	TimeWorked      effort spent on the current assignment
//	AssignDurations effort at submission for each completed assignment
type StudentState struct {
	MH              float64   `json:"mh"`
	Prod            float64   `json:"prod"`
	G               []float64 `json:"g"`
	FreeTime        int       `json:"free_time"`
	NumAssignments  int       `json:"num_assignments"`
	TimeWorked      float64   `json:"time_worked"`
	AssignDurations []float64 `json:"assign_durations"`
}

// NewStudentState validates every field and returns the state.
func NewStudentState(mh, prod float64, g []float64, freeTime, numAssignments int, timeWorked float64, durations []float64) (StudentState, error) {
	s := StudentState{
		MH:              mh,
		Prod:            prod,
		G:               append([]float64(nil), g...),
		FreeTime:        freeTime,
		NumAssignments:  numAssignments,
		TimeWorked:      timeWorked,
		AssignDurations: append([]float64(nil), durations...),
	}
	if err := s.Validate(); err != nil {
		return StudentState{}, err
	}
	return s, nil
}

// Validate reports the first field outside its legal range.
func (s StudentState) Validate() error {
	switch {
	case !inRange(s.MH, -1, 1):
		return fmt.Errorf("%w: mh %v not in [-1, 1]", core.ErrInvalidState, s.MH)
	case !inRange(s.Prod, 0, 1):
		return fmt.Errorf("%w: prod %v not in [0, 1]", core.ErrInvalidState, s.Prod)
	case s.FreeTime < 0 || s.FreeTime > MaxFreeTime:
		return fmt.Errorf("%w: free_time %d not in [0, %d]", core.ErrInvalidState, s.FreeTime, MaxFreeTime)
	case s.NumAssignments < 0:
		return fmt.Errorf("%w: num_assignments %d is negative", core.ErrInvalidState, s.NumAssignments)
	case !inRange(s.TimeWorked, 0, math.MaxFloat64):
		return fmt.Errorf("%w: time_worked %v is not a finite non-negative number", core.ErrInvalidState, s.TimeWorked)
	}
	for i, gi := range s.G {
		if !inRange(gi, 0, 1) {
			return fmt.Errorf("%w: g[%d] %v not in [0, 1]", core.ErrInvalidState, i, gi)
		}
	}
	for i, d := range s.AssignDurations {
		if !inRange(d, 0, math.MaxFloat64) {
			return fmt.Errorf("%w: assign_durations[%d] %v is not a finite non-negative number", core.ErrInvalidState, i, d)
		}
	}
	return nil
}

// Clone returns a deep copy so slices are never shared between states.
func (s StudentState) Clone() StudentState {
	s.G = append([]float64(nil), s.G...)
	s.AssignDurations = append([]float64(nil), s.AssignDurations...)
	return s
}

// CompetencySum returns the sum of all competency components.
func (s StudentState) CompetencySum() float64 {
	var sum float64
	for _, gi := range s.G {
		sum += gi
	}
	return sum
}

// LastDuration returns the effort recorded for the most recent submission.
func (s StudentState) LastDuration() float64 {
	if len(s.AssignDurations) == 0 {
		return 0
	}
	return s.AssignDurations[len(s.AssignDurations)-1]
}

func (s StudentState) Key() string {
	return strings.Join([]string{
		formatFloat(s.MH),
		formatFloat(s.Prod),
		formatFloats(s.G),
		strconv.Itoa(s.FreeTime),
		strconv.Itoa(s.NumAssignments),
		formatFloat(s.TimeWorked),
		formatFloats(s.AssignDurations),
	}, "|")
}

// StudentAction either submits the current assignment or splits the day
// between resting and working.
type StudentAction struct {
	Submit bool    `json:"submit"`
	Rest   float64 `json:"rest"`
	Work   float64 `json:"work"`
}

// SubmitAction returns the action that submits the current assignment.
func SubmitAction() StudentAction {
	return StudentAction{Submit: true}
}

// NewStudentWork returns a non-submitting action splitting time between rest and work.
func NewStudentWork(rest, work float64) (StudentAction, error) {
	a := StudentAction{Rest: rest, Work: work}
	if err := a.Validate(); err != nil {
		return StudentAction{}, err
	}
	return a, nil
}

// Validate enforces submit exclusivity and the rest+work simplex.
func (a StudentAction) Validate() error {
	if a.Submit {
		if a.Rest != 0 || a.Work != 0 {
			return fmt.Errorf("%w: submit cannot carry a rest/work split", core.ErrInvalidAction)
		}
		return nil
	}
	if !inRange(a.Rest, 0, 1) || !inRange(a.Work, 0, 1) {
		return fmt.Errorf("%w: rest %v and work %v must be in [0, 1]", core.ErrInvalidAction, a.Rest, a.Work)
	}
	if !onSimplex(a.Rest + a.Work) {
		return fmt.Errorf("%w: rest + work = %v, want 1", core.ErrInvalidAction, a.Rest+a.Work)
	}
	return nil
}

func (a StudentAction) Key() string {
	if a.Submit {
		return "submit"
	}
	return formatFloat(a.Rest) + "|" + formatFloat(a.Work)
}

func (a StudentAction) String() string {
	if a.Submit {
		return "submit"
	}
	return fmt.Sprintf("rest=%.2f work=%.2f", a.Rest, a.Work)
}

// StudentObservation is what a student sees after a step. Grade is nil
// unless the student just submitted.
type StudentObservation struct {
	Grade          *float64 `json:"grade"`
	FreeTime       int      `json:"free_time"`
	NumAssignments int      `json:"num_assignments"`
}

// HasGrade reports whether the observation carries a grade.
func (o StudentObservation) HasGrade() bool {
	return o.Grade != nil
}

// WithGrade returns a copy of the observation carrying grade g.
func (o StudentObservation) WithGrade(g float64) StudentObservation {
	o.Grade = &g
	return o
}

func (o StudentObservation) Key() string {
	grade := "none"
	if o.Grade != nil {
		grade = formatFloat(*o.Grade)
	}
	return grade + "|" + strconv.Itoa(o.FreeTime) + "|" + strconv.Itoa(o.NumAssignments)
}

// Student is the decision process of a single learner.
type Student struct {
	discount float64
}

var _ core.Process[StudentState, StudentAction, StudentObservation] = (*Student)(nil)

func NewStudent() *Student {
	return &Student{discount: studentDiscount}
}

func (m *Student) Discount() float64 {
	return m.discount
}

// Transition returns 80 equally likely next states for a work/rest split
// (10 correlated mood/productivity noise draws times 8 free-time values), or
// 8 for a submission.
func (m *Student) Transition(rng *rand.Rand, s StudentState, a StudentAction) (*core.Distribution[StudentState], error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.Submit {
		return m.submitTransition(s)
	}

	mh := s.MH + a.Rest*0.1
	prod := s.Prod + a.Work*0.1
	g := make([]float64, len(s.G))
	for i, gi := range s.G {
		g[i] = clamp(gi+a.Work*0.05, 0, 1)
	}
	timeWorked := s.TimeWorked + a.Work*float64(s.FreeTime)

	n := studentNoiseSamples * (MaxFreeTime + 1)
	out := core.NewDistribution[StudentState](n)
	w := 1.0 / float64(n)
	for i := 0; i < studentNoiseSamples; i++ {
		z1, z2 := rng.NormFloat64(), rng.NormFloat64()
		noisyMH := clamp(mh+noiseL11*z1, -1, 1)
		noisyProd := clamp(prod+noiseL21*z1+noiseL22*z2, 0, 1)
		for ft := 0; ft <= MaxFreeTime; ft++ {
			err := out.Add(StudentState{
				MH:              noisyMH,
				Prod:            noisyProd,
				G:               append([]float64(nil), g...),
				FreeTime:        ft,
				NumAssignments:  s.NumAssignments,
				TimeWorked:      timeWorked,
				AssignDurations: append([]float64(nil), s.AssignDurations...),
			}, w)
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (m *Student) submitTransition(s StudentState) (*core.Distribution[StudentState], error) {
	if s.NumAssignments <= 0 {
		return nil, core.ErrNoUnsubmitted
	}

	durations := append(append([]float64(nil), s.AssignDurations...), s.TimeWorked)
	out := core.NewDistribution[StudentState](MaxFreeTime + 1)
	w := 1.0 / float64(MaxFreeTime+1)
	for ft := 0; ft <= MaxFreeTime; ft++ {
		err := out.Add(StudentState{
			MH:              clamp(s.MH+submitMHBoost, -1, 1),
			Prod:            s.Prod,
			G:               append([]float64(nil), s.G...),
			FreeTime:        ft,
			NumAssignments:  s.NumAssignments - 1,
			TimeWorked:      0,
			AssignDurations: append([]float64(nil), durations...),
		}, w)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Reward is the change in mood, productivity and total competency, less a
// linear penalty once more than five assignments are outstanding.
func (m *Student) Reward(s StudentState, a StudentAction, sp StudentState) float64 {
	r := (sp.MH - s.MH) + (sp.Prod - s.Prod) + (sp.CompetencySum() - s.CompetencySum())
	if sp.NumAssignments > overwhelmThreshold {
		r -= overwhelmPenalty * float64(sp.NumAssignments-overwhelmThreshold)
	}
	return r
}

// Observation returns 20 noisy grade guesses around the quality of the work
// just submitted, or a single grade-less observation otherwise.
func (m *Student) Observation(rng *rand.Rand, a StudentAction, sp StudentState) (*core.Distribution[StudentObservation], error) {
	if !a.Submit {
		return core.Deterministic(StudentObservation{
			FreeTime:       sp.FreeTime,
			NumAssignments: sp.NumAssignments,
		}), nil
	}

	q := Quality(sp.G, sp.LastDuration())
	out := core.NewDistribution[StudentObservation](gradeNoiseSamples)
	w := 1.0 / gradeNoiseSamples
	for i := 0; i < gradeNoiseSamples; i++ {
		grade := clamp(q+gradeNoiseStdDev*rng.NormFloat64(), 0, 100)
		err := out.Add(StudentObservation{
			Grade:          &grade,
			FreeTime:       sp.FreeTime,
			NumAssignments: sp.NumAssignments,
		}, w)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Quality scores submitted work from the mean competency and the effort put
// in, scaled to [0, 100].
func Quality(g []float64, timeWorked float64) float64 {
	var mean float64
	if len(g) > 0 {
		for _, gi := range g {
			mean += gi
		}
		mean /= float64(len(g))
	}
	return clamp((mean+timeWorked/20)*100, 0, 100)
}

// inRange reports lo <= v <= hi. It is false for NaN.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func onSimplex(sum float64) bool {
	return math.Abs(sum-1) <= SimplexTolerance
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = formatFloat(f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
