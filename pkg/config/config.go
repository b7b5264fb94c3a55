package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

type ExperimentConfig struct {
	Name            string        `yaml:"name"`
	Steps           int           `yaml:"steps"`
	Students        int           `yaml:"students"`
	AssignmentEvery int           `yaml:"assignment_every"`
	Competencies    int           `yaml:"competencies"`
	Seed            uint64        `yaml:"seed"`
	StudentPolicy   StudentConfig `yaml:"student_policy"`
	TeacherPolicy   TeacherConfig `yaml:"teacher_policy"`
	LLM             LLMConfig     `yaml:"llm"`
	Output          OutputConfig  `yaml:"output"`
	Logging         LogConfig     `yaml:"logging"`
}

type StudentConfig struct {
	Type            string  `yaml:"type"`
	SubmitThreshold float64 `yaml:"submit_threshold"`
}

type TeacherConfig struct {
	Type string `yaml:"type"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Memory   int    `yaml:"memory"`
}

type OutputConfig struct {
	DB  string `yaml:"db"`
	CSV string `yaml:"csv"`
}

type LogConfig struct {
	Verbose bool `yaml:"verbose"`
}

var (
	StudentPolicies = []string{"random", "work", "rest", "llm"}
	TeacherPolicies = []string{"random", "grade", "rest", "llm"}
)

// Default returns the configuration used when no file is given.
func Default() *ExperimentConfig {
	return &ExperimentConfig{
		Name:            "classroom",
		Steps:           30,
		Students:        35,
		AssignmentEvery: 3,
		Competencies:    8,
		Seed:            1,
		StudentPolicy: StudentConfig{
			Type:            "random",
			SubmitThreshold: 0.3,
		},
		TeacherPolicy: TeacherConfig{
			Type: "random",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Memory:   20,
		},
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all config values are valid.
func (c *ExperimentConfig) Validate() error {
	switch {
	case c.Steps < 0:
		return fmt.Errorf("invalid steps %d: cannot be negative", c.Steps)
	case c.Students < 1:
		return fmt.Errorf("invalid students %d: need at least one", c.Students)
	case c.AssignmentEvery < 1:
		return fmt.Errorf("invalid assignment_every %d: must be positive", c.AssignmentEvery)
	case c.Competencies < 1:
		return fmt.Errorf("invalid competencies %d: must be positive", c.Competencies)
	case c.StudentPolicy.SubmitThreshold < 0 || c.StudentPolicy.SubmitThreshold > 1:
		return fmt.Errorf("invalid submit_threshold %v: must be in [0, 1]", c.StudentPolicy.SubmitThreshold)
	case !slices.Contains(StudentPolicies, c.StudentPolicy.Type):
		return fmt.Errorf("invalid student policy %q: want one of %v", c.StudentPolicy.Type, StudentPolicies)
	case !slices.Contains(TeacherPolicies, c.TeacherPolicy.Type):
		return fmt.Errorf("invalid teacher policy %q: want one of %v", c.TeacherPolicy.Type, TeacherPolicies)
	case c.LLM.Memory < 0:
		return fmt.Errorf("invalid llm memory %d: cannot be negative", c.LLM.Memory)
	}
	return nil
}
