package history

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/boristopalov/classroom/pkg/agent"
	"github.com/boristopalov/classroom/pkg/environment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runDays plays days of submit-when-possible against an always-grading
// teacher and records every snapshot.
func runDays(t *testing.T, students, days int) (*environment.Classroom, *Log) {
	t.Helper()
	c, err := environment.NewClassroom(students, 2, environment.WithSeed(4))
	require.NoError(t, err)

	l := NewLog()
	l.Record(Take(c, 0, nil))
	for d := range days {
		actions := make([]agent.StudentAction, students)
		for i := range actions {
			if d%2 == 0 {
				actions[i] = agent.SubmitAction()
			} else {
				actions[i] = agent.StudentAction{Rest: 0.5, Work: 0.5}
			}
		}
		ta := agent.TeacherAction{Grading: 1}
		res, err := c.Step(actions, ta, d)
		require.NoError(t, err)
		l.Record(Take(c, d+1, &Step{StudentActions: actions, TeacherAction: ta, Result: res}))
	}
	return c, l
}

func TestTake_Initial(t *testing.T) {
	c, err := environment.NewClassroom(3, 2, environment.WithSeed(4))
	require.NoError(t, err)

	s := Take(c, 0, nil)
	assert.Equal(t, 3, s.NumStudents)
	assert.Zero(t, s.NumGraded)
	assert.Nil(t, s.GradingGap)
	assert.Nil(t, s.AvgStudentReward)
	assert.Nil(t, s.Teacher.Action)
	require.Len(t, s.Students, 3)
	for _, rec := range s.Students {
		assert.Nil(t, rec.Action)
		assert.False(t, rec.Observation.HasGrade())
	}
}

func TestTake_AfterStep(t *testing.T) {
	c, l := runDays(t, 3, 4)

	s, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, 4, s.Day)
	assert.Equal(t, c.NumGraded(), s.NumGraded)
	assert.Equal(t, c.NumUngraded(), s.NumUngraded)
	require.NotNil(t, s.AvgStudentReward)
	require.NotNil(t, s.Teacher.Reward)

	total := 0.0
	for _, rec := range s.Students {
		require.NotNil(t, rec.Reward)
		total += *rec.Reward
	}
	assert.InDelta(t, total/3, *s.AvgStudentReward, 1e-12)

	if gap, ok := c.GradingGap(); ok {
		require.NotNil(t, s.GradingGap)
		assert.Equal(t, gap, *s.GradingGap)
	}
}

func TestLog_Rows(t *testing.T) {
	_, l := runDays(t, 3, 4)
	snaps := l.Snapshots()
	require.Len(t, snaps, 5)

	rows := l.StudentRows()
	require.Len(t, rows, 12)
	first := rows[0]
	assert.Equal(t, 1, first.Day)
	assert.Equal(t, 0, first.Student)
	assert.True(t, first.Submit)
	assert.Equal(t, snaps[0].Students[0].Observation.FreeTime, first.FreeTime)
	assert.Equal(t, *snaps[1].Students[0].Reward, first.Reward)

	trows := l.TeacherRows()
	require.Len(t, trows, 4)
	assert.Equal(t, snaps[1].Teacher.Observation.NumAssignments, trows[1].NumAssignments)
	assert.Equal(t, 1.0, trows[1].Grading)
}

func TestLog_HistoryRows(t *testing.T) {
	c, l := runDays(t, 2, 4)
	snaps := l.Snapshots()

	rows := l.StudentHistoryRows()
	require.Len(t, rows, 2*4)
	for _, r := range rows {
		require.Len(t, r.Observations, r.Day, "day %d sees one observation per earlier day", r.Day)
		assert.Equal(t, *snaps[r.Day].Students[r.Student].Action, r.Action)
		assert.Equal(t, *snaps[r.Day].Students[r.Student].Reward, r.Reward)
	}
	last := rows[len(rows)-1]
	assert.Equal(t, c.StudentObservations(last.Student)[:4], last.Observations)

	trows := l.TeacherHistoryRows()
	require.Len(t, trows, 4)
	assert.Equal(t, c.TeacherObservations()[:3], trows[2].Observations)
	assert.Equal(t, 1.0, trows[0].Action.Grading)
}

func TestLog_CSV(t *testing.T) {
	_, l := runDays(t, 2, 3)

	var buf bytes.Buffer
	require.NoError(t, l.WriteStudentCSV(&buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+2*3)
	assert.Equal(t, "day", records[0][0])
	assert.Equal(t, "true", records[1][5])

	buf.Reset()
	require.NoError(t, l.WriteTeacherCSV(&buf))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+3)
	assert.Equal(t, []string{"day", "free_time", "num_assignments", "rest", "grading", "pd", "reward"}, records[0])
}

func TestLog_Empty(t *testing.T) {
	l := NewLog()
	_, ok := l.Latest()
	assert.False(t, ok)
	assert.Empty(t, l.StudentRows())
	l.DisplayLatest()

	l.Record(Snapshot{Day: 0})
	assert.Equal(t, 1, l.Len())
	assert.Contains(t, Summary(Snapshot{Day: 2}), "[day 2]")
	l.Reset()
	assert.Zero(t, l.Len())
}
