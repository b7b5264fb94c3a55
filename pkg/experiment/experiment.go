package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/boristopalov/classroom/pkg/agent"
	"github.com/boristopalov/classroom/pkg/config"
	"github.com/boristopalov/classroom/pkg/core"
	"github.com/boristopalov/classroom/pkg/environment"
	"github.com/boristopalov/classroom/pkg/history"
	"github.com/boristopalov/classroom/pkg/messaging"
	"github.com/boristopalov/classroom/pkg/policy"
	"github.com/google/uuid"
)

var (
	// ErrStopped is returned by Run when Stop was called before the last step.
	ErrStopped = errors.New("experiment stopped")
	// ErrAlreadyRan is returned by a second Run. Each run owns its classroom,
	// log and run ID, so build a new experiment to run again.
	ErrAlreadyRan = errors.New("experiment already ran")
)

// Recorder persists snapshots as they are taken.
type Recorder interface {
	SaveSnapshot(runID string, s history.Snapshot) error
}

// ClassroomExperiment drives a Classroom with one policy per student and one
// for the teacher.
type ClassroomExperiment struct {
	id        string
	name      string
	steps     int
	classroom *environment.Classroom
	students  []policy.StudentPolicy
	teacher   policy.TeacherPolicy
	log       *history.Log
	broker    messaging.Broker[history.Snapshot]
	recorder  Recorder
	verbose   bool

	mu            sync.RWMutex
	status        core.ExperimentStatus
	cancel        context.CancelFunc
	stopRequested bool
	started       bool
}

var _ core.Experiment = (*ClassroomExperiment)(nil)

type ExperimentOption func(*ClassroomExperiment)

func WithBroker(b messaging.Broker[history.Snapshot]) ExperimentOption {
	return func(e *ClassroomExperiment) {
		e.broker = b
	}
}

func WithRecorder(r Recorder) ExperimentOption {
	return func(e *ClassroomExperiment) {
		e.recorder = r
	}
}

func WithRunID(id string) ExperimentOption {
	return func(e *ClassroomExperiment) {
		e.id = id
	}
}

func WithVerbose(v bool) ExperimentOption {
	return func(e *ClassroomExperiment) {
		e.verbose = v
	}
}

func NewExperiment(cfg *config.ExperimentConfig, c *environment.Classroom, students []policy.StudentPolicy, teacher policy.TeacherPolicy, opts ...ExperimentOption) (*ClassroomExperiment, error) {
	if len(students) != c.NumStudents() {
		return nil, fmt.Errorf("%w: got %d student policies for %d students", core.ErrStudentCount, len(students), c.NumStudents())
	}
	if teacher == nil {
		return nil, fmt.Errorf("no teacher policy")
	}

	e := &ClassroomExperiment{
		id:        uuid.New().String(),
		name:      cfg.Name,
		steps:     cfg.Steps,
		classroom: c,
		students:  students,
		teacher:   teacher,
		log:       history.NewLog(),
		verbose:   cfg.Logging.Verbose,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *ClassroomExperiment) ID() string {
	return e.id
}

func (e *ClassroomExperiment) Log() *history.Log {
	return e.log
}

func (e *ClassroomExperiment) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.status.Running {
		e.mu.Unlock()
		return fmt.Errorf("experiment %s is already running", e.id)
	}
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("experiment %s: %w", e.id, ErrAlreadyRan)
	}
	e.started = true
	e.status = core.ExperimentStatus{
		Running:   true,
		StartTime: time.Now(),
	}
	e.cancel = cancel
	e.stopRequested = false
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.status.Running = false
		e.status.EndTime = time.Now()
		e.cancel = nil
		e.mu.Unlock()
	}()

	log.Printf("Starting experiment %s (%s): %d students, %d steps", e.name, e.id, e.classroom.NumStudents(), e.steps)
	if err := e.record(history.Take(e.classroom, 0, nil)); err != nil {
		return e.fail(err)
	}
	if err := e.runLoop(ctx); err != nil {
		return e.fail(err)
	}
	log.Printf("Experiment %s finished after %d steps", e.id, e.steps)
	return nil
}

func (e *ClassroomExperiment) runLoop(ctx context.Context) error {
	for t := range e.steps {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) && e.stopped() {
				return ErrStopped
			}
			return ctx.Err()
		default:
		}
		if err := e.step(ctx, t); err != nil {
			return fmt.Errorf("step %d: %w", t, err)
		}
	}
	return nil
}

func (e *ClassroomExperiment) step(ctx context.Context, t int) error {
	actions := make([]agent.StudentAction, len(e.students))
	for i, p := range e.students {
		a, err := p.Act(ctx, e.classroom.StudentObservations(i))
		if err != nil {
			return fmt.Errorf("student %d: %w", i, err)
		}
		actions[i] = a
	}
	rewards, err := e.classroom.StudentStep(actions, t)
	if err != nil {
		return err
	}

	ta, err := e.teacher.Act(ctx, e.classroom.TeacherObservations())
	if err != nil {
		return fmt.Errorf("teacher: %w", err)
	}
	graded := e.classroom.NumGraded()
	teacherReward, err := e.classroom.TeacherStep(ta, t)
	if err != nil {
		return err
	}

	snap := history.Take(e.classroom, t+1, &history.Step{
		StudentActions: actions,
		TeacherAction:  ta,
		Result: environment.StepResult{
			StudentRewards: rewards,
			TeacherReward:  teacherReward,
			NumGraded:      e.classroom.NumGraded() - graded,
		},
	})
	if err := e.record(snap); err != nil {
		return err
	}

	e.mu.Lock()
	e.status.StepsCompleted = t + 1
	e.mu.Unlock()
	return nil
}

// record logs, publishes and persists one snapshot. Publishing is best
// effort; persistence failures stop the run.
func (e *ClassroomExperiment) record(s history.Snapshot) error {
	e.log.Record(s)
	if e.verbose {
		e.log.DisplayLatest()
	}

	if e.broker != nil {
		msg := messaging.Message[history.Snapshot]{
			From:      e.id,
			Topic:     messaging.TopicSnapshots,
			Content:   s,
			Timestamp: time.Now(),
		}
		if err := e.broker.Publish(msg); err != nil {
			log.Printf("Warning: failed to publish snapshot for day %d: %v", s.Day, err)
		}
	}

	if e.recorder != nil {
		if err := e.recorder.SaveSnapshot(e.id, s); err != nil {
			return fmt.Errorf("saving snapshot for day %d: %w", s.Day, err)
		}
	}
	return nil
}

func (e *ClassroomExperiment) fail(err error) error {
	e.mu.Lock()
	e.status.Errors = append(e.status.Errors, err)
	e.mu.Unlock()
	log.Printf("Experiment %s failed: %v", e.id, err)
	return err
}

// Stop cancels a running experiment before its next step.
func (e *ClassroomExperiment) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.status.Running || e.cancel == nil {
		return fmt.Errorf("experiment %s is not running", e.id)
	}
	e.stopRequested = true
	e.cancel()
	return nil
}

func (e *ClassroomExperiment) stopped() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopRequested
}

func (e *ClassroomExperiment) Status() core.ExperimentStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.status
	s.Errors = append([]error(nil), e.status.Errors...)
	return s
}
