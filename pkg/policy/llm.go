package policy

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/boristopalov/classroom/pkg/agent"
	"github.com/boristopalov/classroom/pkg/memory"
	"github.com/boristopalov/classroom/pkg/providers"
	"github.com/google/uuid"
)

const (
	STUDENT_SYSTEM_PROMPT = `You are a student in a class. Every day you have a number of free hours. You can split them between resting, which restores your mental health, and working on your current assignment, which improves the quality of your submission. You may instead submit your oldest unfinished assignment. Your goal is to earn good grades without burning out.`

	TEACHER_SYSTEM_PROMPT = `You are the teacher of a class. Every day you have a number of free hours. You split them between resting, which restores your mental health, grading submitted assignments, and professional development, which slowly improves how fast you grade. Your goal is to keep the grading backlog small without burning out.`

	STUDENT_PROMPT_TEMPLATE = `Your name is %s. It is day %d.
You have %d free hours today and %d unsubmitted assignments.
%s
%s
Decide what to do today. Very briefly think step by step, then give your answer after the string "ANSWER" in exactly one of these forms:
ANSWER: SUBMIT
ANSWER: rest=<fraction> work=<fraction>
The fractions must be between 0 and 1 and add up to 1.`

	TEACHER_PROMPT_TEMPLATE = `Your name is %s. It is day %d.
You have %d free hours today and %d submitted assignments waiting to be graded.
%s
Decide how to split your time today. Very briefly think step by step, then give your answer after the string "ANSWER" like so:
ANSWER: rest=<fraction> grading=<fraction> pd=<fraction>
The fractions must be between 0 and 1 and add up to 1.`

	defaultLLMModel      = "gpt-4o-mini"
	defaultLLMMemorySize = 20
)

var (
	submitAnswerRe  = regexp.MustCompile(`(?i)ANSWER:\s*\**\s*SUBMIT\b`)
	studentAnswerRe = regexp.MustCompile(`(?i)ANSWER:\s*\**\s*rest\s*=\s*(\d*\.?\d+)\s*,?\s*work\s*=\s*(\d*\.?\d+)`)
	teacherAnswerRe = regexp.MustCompile(`(?i)ANSWER:\s*\**\s*rest\s*=\s*(\d*\.?\d+)\s*,?\s*grading\s*=\s*(\d*\.?\d+)\s*,?\s*pd\s*=\s*(\d*\.?\d+)`)
)

type LLMParams struct {
	ID         string
	Client     providers.Client
	Model      string
	MemorySize int
}

type LLMOption func(*LLMParams)

func WithClient(c providers.Client) LLMOption {
	return func(p *LLMParams) {
		p.Client = c
	}
}

func WithModel(model string) LLMOption {
	return func(p *LLMParams) {
		p.Model = model
	}
}

func WithMemorySize(n int) LLMOption {
	return func(p *LLMParams) {
		p.MemorySize = n
	}
}

func WithID(id string) LLMOption {
	return func(p *LLMParams) {
		p.ID = id
	}
}

func defaultLLMParams(prefix string) *LLMParams {
	return &LLMParams{
		ID:         prefix + "-" + uuid.New().String(),
		Model:      defaultLLMModel,
		MemorySize: defaultLLMMemorySize,
	}
}

// llmPolicy holds what the student and teacher LLM policies share: a client,
// a model and a bounded memory of past decisions fed back into the prompt.
type llmPolicy struct {
	id     string
	client providers.Client
	model  string
	memory *memory.Memory[string]
}

func newLLMPolicy(prefix string, opts []LLMOption) (llmPolicy, error) {
	params := defaultLLMParams(prefix)
	for _, opt := range opts {
		opt(params)
	}
	if params.Client == nil {
		return llmPolicy{}, fmt.Errorf("llm policy %s: no client configured", params.ID)
	}
	return llmPolicy{
		id:     params.ID,
		client: params.Client,
		model:  params.Model,
		memory: memory.NewMemory[string](params.MemorySize),
	}, nil
}

func (p *llmPolicy) ID() string {
	return p.id
}

func (p *llmPolicy) Memory() *memory.Memory[string] {
	return p.memory
}

func (p *llmPolicy) recall() string {
	past := p.memory.All()
	if len(past) == 0 {
		return "You have made no decisions yet."
	}
	return "Your previous decisions:\n" + strings.Join(past, "\n")
}

// LLMStudent asks a language model what to do each day and falls back to
// another policy when the answer is missing or illegal.
type LLMStudent struct {
	llmPolicy
	fallback StudentPolicy
}

func NewLLMStudent(fallback StudentPolicy, opts ...LLMOption) (*LLMStudent, error) {
	base, err := newLLMPolicy("student", opts)
	if err != nil {
		return nil, err
	}
	return &LLMStudent{llmPolicy: base, fallback: fallback}, nil
}

func (p *LLMStudent) Act(ctx context.Context, history []agent.StudentObservation) (agent.StudentAction, error) {
	o, err := latest(history)
	if err != nil {
		return agent.StudentAction{}, err
	}
	day := len(history) - 1

	grade := "You have not received a grade since your last decision."
	if o.HasGrade() {
		grade = fmt.Sprintf("Your last submission was graded %.1f out of 100.", *o.Grade)
	}
	prompt := fmt.Sprintf(STUDENT_PROMPT_TEMPLATE, p.id, day, o.FreeTime, o.NumAssignments, grade, p.recall())

	action, err := p.ask(ctx, prompt, o)
	if err != nil {
		log.Printf("student %s: falling back on day %d: %v", p.id, day, err)
		action, err = p.fallback.Act(ctx, history)
		if err != nil {
			return agent.StudentAction{}, err
		}
	}
	p.memory.Store(fmt.Sprintf("Day %d: %s", day, action))
	return action, nil
}

func (p *LLMStudent) ask(ctx context.Context, prompt string, o agent.StudentObservation) (agent.StudentAction, error) {
	response, err := p.client.Complete(ctx, p.model, prompt, STUDENT_SYSTEM_PROMPT)
	if err != nil {
		return agent.StudentAction{}, fmt.Errorf("failed to generate response: %w", err)
	}
	log.Printf("Response for student %s: %s", p.id, response)

	action, err := parseStudentResponse(response)
	if err != nil {
		return agent.StudentAction{}, err
	}
	if action.Submit && o.NumAssignments == 0 {
		return agent.StudentAction{}, fmt.Errorf("model chose to submit with nothing outstanding")
	}
	return action, nil
}

// LLMTeacher is the teacher counterpart of LLMStudent.
type LLMTeacher struct {
	llmPolicy
	fallback TeacherPolicy
}

func NewLLMTeacher(fallback TeacherPolicy, opts ...LLMOption) (*LLMTeacher, error) {
	base, err := newLLMPolicy("teacher", opts)
	if err != nil {
		return nil, err
	}
	return &LLMTeacher{llmPolicy: base, fallback: fallback}, nil
}

func (p *LLMTeacher) Act(ctx context.Context, history []agent.TeacherObservation) (agent.TeacherAction, error) {
	o, err := latest(history)
	if err != nil {
		return agent.TeacherAction{}, err
	}
	day := len(history) - 1
	prompt := fmt.Sprintf(TEACHER_PROMPT_TEMPLATE, p.id, day, o.FreeTime, o.NumAssignments, p.recall())

	action, err := p.ask(ctx, prompt)
	if err != nil {
		log.Printf("teacher %s: falling back on day %d: %v", p.id, day, err)
		action, err = p.fallback.Act(ctx, history)
		if err != nil {
			return agent.TeacherAction{}, err
		}
	}
	p.memory.Store(fmt.Sprintf("Day %d: %s", day, action))
	return action, nil
}

func (p *LLMTeacher) ask(ctx context.Context, prompt string) (agent.TeacherAction, error) {
	response, err := p.client.Complete(ctx, p.model, prompt, TEACHER_SYSTEM_PROMPT)
	if err != nil {
		return agent.TeacherAction{}, fmt.Errorf("failed to generate response: %w", err)
	}
	log.Printf("Response for teacher %s: %s", p.id, response)
	return parseTeacherResponse(response)
}

// parseStudentResponse reads the last ANSWER in the response.
func parseStudentResponse(response string) (agent.StudentAction, error) {
	split := studentAnswerRe.FindAllStringSubmatchIndex(response, -1)
	submit := submitAnswerRe.FindAllStringIndex(response, -1)

	lastSplit, lastSubmit := -1, -1
	if len(split) > 0 {
		lastSplit = split[len(split)-1][0]
	}
	if len(submit) > 0 {
		lastSubmit = submit[len(submit)-1][0]
	}
	switch {
	case lastSplit < 0 && lastSubmit < 0:
		return agent.StudentAction{}, fmt.Errorf("could not find answer in response: %s", response)
	case lastSubmit > lastSplit:
		return agent.SubmitAction(), nil
	}

	m := split[len(split)-1]
	fs, err := parseFloats(response, m[2:])
	if err != nil {
		return agent.StudentAction{}, err
	}
	return agent.NewStudentWork(fs[0], fs[1])
}

func parseTeacherResponse(response string) (agent.TeacherAction, error) {
	all := teacherAnswerRe.FindAllStringSubmatchIndex(response, -1)
	if len(all) == 0 {
		return agent.TeacherAction{}, fmt.Errorf("could not find answer in response: %s", response)
	}
	m := all[len(all)-1]
	fs, err := parseFloats(response, m[2:])
	if err != nil {
		return agent.TeacherAction{}, err
	}
	return agent.NewTeacherAction(fs[0], fs[1], fs[2])
}

// parseFloats parses the submatches addressed by pairs of indexes.
func parseFloats(s string, idx []int) ([]float64, error) {
	out := make([]float64, 0, len(idx)/2)
	for i := 0; i+1 < len(idx); i += 2 {
		f, err := strconv.ParseFloat(s[idx[i]:idx[i+1]], 64)
		if err != nil {
			return nil, fmt.Errorf("could not parse fraction: %v", err)
		}
		out = append(out, f)
	}
	return out, nil
}
