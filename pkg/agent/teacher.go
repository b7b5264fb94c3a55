package agent

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/boristopalov/classroom/pkg/core"
)

const (
	teacherDiscount  = 0.95
	burnoutMH        = -0.5
	backlogThreshold = 80
	backlogScale     = 50.0
)

// TeacherState is the latent state of the grading authority. NumAssignments
// is the backlog as the teacher's own process sees it; the classroom
// reconciles it with the real queue every step.
type TeacherState struct {
	MH             float64 `json:"mh"`
	Prod           float64 `json:"prod"`
	G              float64 `json:"g"`
	FreeTime       int     `json:"free_time"`
	NumAssignments int     `json:"num_assignments"`
}

// NewTeacherState validates every field and returns the state.
func NewTeacherState(mh, prod, g float64, freeTime, numAssignments int) (TeacherState, error) {
	s := TeacherState{MH: mh, Prod: prod, G: g, FreeTime: freeTime, NumAssignments: numAssignments}
	if err := s.Validate(); err != nil {
		return TeacherState{}, err
	}
	return s, nil
}

// Validate reports the first field outside its legal range.
func (s TeacherState) Validate() error {
	switch {
	case !inRange(s.MH, -1, 1):
		return fmt.Errorf("%w: mh %v not in [-1, 1]", core.ErrInvalidState, s.MH)
	case !inRange(s.Prod, 0, 1):
		return fmt.Errorf("%w: prod %v not in [0, 1]", core.ErrInvalidState, s.Prod)
	case !inRange(s.G, 0, 1):
		return fmt.Errorf("%w: g %v not in [0, 1]", core.ErrInvalidState, s.G)
	case s.FreeTime < 0 || s.FreeTime > MaxFreeTime:
		return fmt.Errorf("%w: free_time %d not in [0, %d]", core.ErrInvalidState, s.FreeTime, MaxFreeTime)
	case s.NumAssignments < 0:
		return fmt.Errorf("%w: num_assignments %d is negative", core.ErrInvalidState, s.NumAssignments)
	}
	return nil
}

func (s TeacherState) Key() string {
	return formatFloat(s.MH) + "|" + formatFloat(s.Prod) + "|" + formatFloat(s.G) + "|" +
		strconv.Itoa(s.FreeTime) + "|" + strconv.Itoa(s.NumAssignments)
}

// TeacherAction splits the teacher's day between resting, grading and
// professional development.
type TeacherAction struct {
	Rest    float64 `json:"rest"`
	Grading float64 `json:"grading"`
	PD      float64 `json:"pd"`
}

// NewTeacherAction validates the allocation and returns the action.
func NewTeacherAction(rest, grading, pd float64) (TeacherAction, error) {
	a := TeacherAction{Rest: rest, Grading: grading, PD: pd}
	if err := a.Validate(); err != nil {
		return TeacherAction{}, err
	}
	return a, nil
}

// Validate enforces the rest+grading+pd simplex within SimplexTolerance.
func (a TeacherAction) Validate() error {
	for _, x := range []float64{a.Rest, a.Grading, a.PD} {
		if !inRange(x, 0, 1) {
			return fmt.Errorf("%w: time allocation %v not in [0, 1]", core.ErrInvalidAction, x)
		}
	}
	if sum := a.Rest + a.Grading + a.PD; !onSimplex(sum) {
		return fmt.Errorf("%w: rest + grading + pd = %v, want 1", core.ErrInvalidAction, sum)
	}
	return nil
}

func (a TeacherAction) Key() string {
	return formatFloat(a.Rest) + "|" + formatFloat(a.Grading) + "|" + formatFloat(a.PD)
}

func (a TeacherAction) String() string {
	return fmt.Sprintf("rest=%.2f grading=%.2f pd=%.2f", a.Rest, a.Grading, a.PD)
}

// TeacherObservation is fully observable: free time and backlog size.
type TeacherObservation struct {
	FreeTime       int `json:"free_time"`
	NumAssignments int `json:"num_assignments"`
}

func (o TeacherObservation) Key() string {
	return strconv.Itoa(o.FreeTime) + "|" + strconv.Itoa(o.NumAssignments)
}

// Teacher is the decision process of the grading authority.
type Teacher struct {
	discount float64
}

var _ core.Process[TeacherState, TeacherAction, TeacherObservation] = (*Teacher)(nil)

func NewTeacher() *Teacher {
	return &Teacher{discount: teacherDiscount}
}

func (m *Teacher) Discount() float64 {
	return m.discount
}

// AssignmentsGraded is the grading throughput for taking a in s:
// round(grading * free_time * (1 + 3g)).
func AssignmentsGraded(s TeacherState, a TeacherAction) int {
	return int(math.Round(a.Grading * float64(s.FreeTime) * (1 + 3*s.G)))
}

// Transition returns 8 equally likely next states, one per free-time value.
func (m *Teacher) Transition(rng *rand.Rand, s TeacherState, a TeacherAction) (*core.Distribution[TeacherState], error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	mh := s.MH + a.Rest*0.1 - a.Grading*0.1
	prod := s.Prod + a.Grading*0.1 - (a.Rest+a.PD)*0.05
	g := s.G + a.PD*1e-3
	// burnout suppresses output
	if mh < burnoutMH {
		prod *= 0.95
		g *= 0.99
	}
	remaining := s.NumAssignments - AssignmentsGraded(s, a)
	if remaining < 0 {
		remaining = 0
	}

	out := core.NewDistribution[TeacherState](MaxFreeTime + 1)
	w := 1.0 / float64(MaxFreeTime+1)
	for ft := 0; ft <= MaxFreeTime; ft++ {
		err := out.Add(TeacherState{
			MH:             clamp(mh, -1, 1),
			Prod:           clamp(prod, 0, 1),
			G:              clamp(g, 0, 1),
			FreeTime:       ft,
			NumAssignments: remaining,
		}, w)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Reward favors mood, productive grading and growth, and penalizes days with
// no free time and backlogs above 80.
func (m *Teacher) Reward(s TeacherState, a TeacherAction, sp TeacherState) float64 {
	r := (sp.MH - s.MH) + sp.Prod*(1+a.Grading) + (sp.G - s.G)
	if sp.FreeTime < 1 {
		r -= 1
	}
	if sp.NumAssignments > backlogThreshold {
		r -= float64(sp.NumAssignments-backlogThreshold) / backlogScale
	}
	return r
}

// Observation returns the free time and backlog of sp with certainty.
func (m *Teacher) Observation(_ *rand.Rand, _ TeacherAction, sp TeacherState) (*core.Distribution[TeacherObservation], error) {
	return core.Deterministic(TeacherObservation{
		FreeTime:       sp.FreeTime,
		NumAssignments: sp.NumAssignments,
	}), nil
}
