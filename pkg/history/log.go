package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"

	"github.com/boristopalov/classroom/pkg/agent"
)

// Log is the ordered sequence of snapshots of one run.
type Log struct {
	snapshots []Snapshot
	mu        sync.RWMutex
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Record(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = append(l.snapshots, s)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.snapshots)
}

// Snapshots returns the recorded snapshots, oldest first.
func (l *Log) Snapshots() []Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Snapshot, len(l.snapshots))
	copy(out, l.snapshots)
	return out
}

func (l *Log) Latest() (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.snapshots) == 0 {
		return Snapshot{}, false
	}
	return l.snapshots[len(l.snapshots)-1], true
}

func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = nil
}

// DisplayLatest logs a one-line summary of the latest day.
func (l *Log) DisplayLatest() {
	s, ok := l.Latest()
	if !ok {
		return
	}
	log.Println(Summary(s))
}

func Summary(s Snapshot) string {
	return fmt.Sprintf("[day %d] avg student reward: %s, teacher reward: %s, graded: %d, ungraded: %d, avg grading gap: %s",
		s.Day, optional(s.AvgStudentReward), optional(s.Teacher.Reward), s.NumGraded, s.NumUngraded, optional(s.GradingGap))
}

func optional(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', 3, 64)
}

// StudentRow is one memoryless training example: what a student saw at the
// end of the previous day, what it did on Day and what that earned.
type StudentRow struct {
	Day            int
	Student        int
	Grade          *float64
	FreeTime       int
	NumAssignments int
	Submit         bool
	Rest           float64
	Work           float64
	Reward         float64
}

type TeacherRow struct {
	Day            int
	FreeTime       int
	NumAssignments int
	Rest           float64
	Grading        float64
	PD             float64
	Reward         float64
}

func (l *Log) StudentRows() []StudentRow {
	snaps := l.Snapshots()
	var rows []StudentRow
	for d := 1; d < len(snaps); d++ {
		prev, cur := snaps[d-1], snaps[d]
		for i, rec := range cur.Students {
			if rec.Action == nil || rec.Reward == nil || i >= len(prev.Students) {
				continue
			}
			o := prev.Students[i].Observation
			rows = append(rows, StudentRow{
				Day:            cur.Day,
				Student:        i,
				Grade:          o.Grade,
				FreeTime:       o.FreeTime,
				NumAssignments: o.NumAssignments,
				Submit:         rec.Action.Submit,
				Rest:           rec.Action.Rest,
				Work:           rec.Action.Work,
				Reward:         *rec.Reward,
			})
		}
	}
	return rows
}

func (l *Log) TeacherRows() []TeacherRow {
	snaps := l.Snapshots()
	var rows []TeacherRow
	for d := 1; d < len(snaps); d++ {
		prev, cur := snaps[d-1], snaps[d]
		if cur.Teacher.Action == nil || cur.Teacher.Reward == nil {
			continue
		}
		o := prev.Teacher.Observation
		rows = append(rows, TeacherRow{
			Day:            cur.Day,
			FreeTime:       o.FreeTime,
			NumAssignments: o.NumAssignments,
			Rest:           cur.Teacher.Action.Rest,
			Grading:        cur.Teacher.Action.Grading,
			PD:             cur.Teacher.Action.PD,
			Reward:         *cur.Teacher.Reward,
		})
	}
	return rows
}

// StudentHistoryRow pairs a day's action and reward with everything the
// student had observed before acting, oldest first.
type StudentHistoryRow struct {
	Day          int
	Student      int
	Observations []agent.StudentObservation
	Action       agent.StudentAction
	Reward       float64
}

type TeacherHistoryRow struct {
	Day          int
	Observations []agent.TeacherObservation
	Action       agent.TeacherAction
	Reward       float64
}

func (l *Log) StudentHistoryRows() []StudentHistoryRow {
	snaps := l.Snapshots()
	var rows []StudentHistoryRow
	for d := 1; d < len(snaps); d++ {
		for i, rec := range snaps[d].Students {
			if rec.Action == nil || rec.Reward == nil {
				continue
			}
			obs := make([]agent.StudentObservation, 0, d)
			for _, prev := range snaps[:d] {
				if i < len(prev.Students) {
					obs = append(obs, prev.Students[i].Observation)
				}
			}
			rows = append(rows, StudentHistoryRow{
				Day:          snaps[d].Day,
				Student:      i,
				Observations: obs,
				Action:       *rec.Action,
				Reward:       *rec.Reward,
			})
		}
	}
	return rows
}

func (l *Log) TeacherHistoryRows() []TeacherHistoryRow {
	snaps := l.Snapshots()
	var rows []TeacherHistoryRow
	for d := 1; d < len(snaps); d++ {
		cur := snaps[d].Teacher
		if cur.Action == nil || cur.Reward == nil {
			continue
		}
		obs := make([]agent.TeacherObservation, d)
		for k, prev := range snaps[:d] {
			obs[k] = prev.Teacher.Observation
		}
		rows = append(rows, TeacherHistoryRow{
			Day:          snaps[d].Day,
			Observations: obs,
			Action:       *cur.Action,
			Reward:       *cur.Reward,
		})
	}
	return rows
}

func (l *Log) WriteStudentCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"day", "student", "grade", "free_time", "num_assignments", "submit", "rest", "work", "reward"}); err != nil {
		return err
	}
	for _, r := range l.StudentRows() {
		grade := ""
		if r.Grade != nil {
			grade = formatFloat(*r.Grade)
		}
		record := []string{
			strconv.Itoa(r.Day),
			strconv.Itoa(r.Student),
			grade,
			strconv.Itoa(r.FreeTime),
			strconv.Itoa(r.NumAssignments),
			strconv.FormatBool(r.Submit),
			formatFloat(r.Rest),
			formatFloat(r.Work),
			formatFloat(r.Reward),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (l *Log) WriteTeacherCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"day", "free_time", "num_assignments", "rest", "grading", "pd", "reward"}); err != nil {
		return err
	}
	for _, r := range l.TeacherRows() {
		record := []string{
			strconv.Itoa(r.Day),
			strconv.Itoa(r.FreeTime),
			strconv.Itoa(r.NumAssignments),
			formatFloat(r.Rest),
			formatFloat(r.Grading),
			formatFloat(r.PD),
			formatFloat(r.Reward),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
