package main

import (
	"context"
	"fmt"

	"github.com/boristopalov/classroom/pkg/config"
	"github.com/boristopalov/classroom/pkg/policy"
	"github.com/boristopalov/classroom/pkg/providers"
)

// buildPolicies gives every student its own policy seeded from the run seed
// so that runs are reproducible.
func buildPolicies(ctx context.Context, cfg *config.ExperimentConfig) ([]policy.StudentPolicy, policy.TeacherPolicy, error) {
	var client providers.Client
	if cfg.StudentPolicy.Type == "llm" || cfg.TeacherPolicy.Type == "llm" {
		var opts []providers.ProviderOption
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, providers.WithBaseURL(cfg.LLM.BaseURL))
		}
		var err error
		if client, err = providers.New(ctx, cfg.LLM.Provider, opts...); err != nil {
			return nil, nil, err
		}
	}
	llmOpts := func(id string) []policy.LLMOption {
		return []policy.LLMOption{
			policy.WithClient(client),
			policy.WithModel(cfg.LLM.Model),
			policy.WithMemorySize(cfg.LLM.Memory),
			policy.WithID(id),
		}
	}

	threshold := cfg.StudentPolicy.SubmitThreshold
	students := make([]policy.StudentPolicy, cfg.Students)
	for i := range students {
		seed := cfg.Seed + uint64(i) + 1
		switch cfg.StudentPolicy.Type {
		case "random":
			students[i] = policy.NewRandomStudent(seed, threshold)
		case "work":
			students[i] = policy.NewAlwaysWork(seed, threshold)
		case "rest":
			students[i] = policy.AlwaysRest()
		case "llm":
			p, err := policy.NewLLMStudent(policy.NewRandomStudent(seed, threshold), llmOpts(fmt.Sprintf("student-%d", i))...)
			if err != nil {
				return nil, nil, err
			}
			students[i] = p
		default:
			return nil, nil, fmt.Errorf("unknown student policy %q", cfg.StudentPolicy.Type)
		}
	}

	teacherSeed := cfg.Seed + uint64(cfg.Students) + 1
	var teacher policy.TeacherPolicy
	switch cfg.TeacherPolicy.Type {
	case "random":
		teacher = policy.NewRandomTeacher(teacherSeed)
	case "grade":
		teacher = policy.AlwaysGrade()
	case "rest":
		teacher = policy.TeacherRest()
	case "llm":
		p, err := policy.NewLLMTeacher(policy.NewRandomTeacher(teacherSeed), llmOpts("teacher")...)
		if err != nil {
			return nil, nil, err
		}
		teacher = p
	default:
		return nil, nil, fmt.Errorf("unknown teacher policy %q", cfg.TeacherPolicy.Type)
	}
	return students, teacher, nil
}
