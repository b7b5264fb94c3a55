package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 35, cfg.Students)
	assert.Equal(t, 30, cfg.Steps)
	assert.Equal(t, 3, cfg.AssignmentEvery)
	assert.Equal(t, 0.3, cfg.StudentPolicy.SubmitThreshold)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
name: small
students: 4
steps: 10
student_policy:
  type: work
teacher_policy:
  type: grade
output:
  db: runs.db
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "small", cfg.Name)
	assert.Equal(t, 4, cfg.Students)
	assert.Equal(t, 10, cfg.Steps)
	assert.Equal(t, 3, cfg.AssignmentEvery, "unset fields keep their default")
	assert.Equal(t, "work", cfg.StudentPolicy.Type)
	assert.Equal(t, 0.3, cfg.StudentPolicy.SubmitThreshold)
	assert.Equal(t, "grade", cfg.TeacherPolicy.Type)
	assert.Equal(t, "runs.db", cfg.Output.DB)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "students: [1, 2"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "students: 0"))
	assert.ErrorContains(t, err, "students")

	_, err = LoadConfig(writeConfig(t, "teacher_policy:\n  type: lecture\n"))
	assert.ErrorContains(t, err, "teacher policy")
}
