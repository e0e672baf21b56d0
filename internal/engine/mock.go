package engine

import (
	"context"
	"fmt"
	"sync"
)

// MockEngine implements Engine for testing. Responses are scripted per task
// name; every invocation is recorded for assertions.
type MockEngine struct {
	mu sync.Mutex

	// Results maps task name to the scripted result. Tasks without an
	// entry succeed with an empty result.
	Results map[string]*JobResult

	// Errors maps task name to a scripted failure.
	Errors map[string]error

	// SummaryDoc is returned by Summary for every dataset.
	SummaryDoc []byte

	// SummaryErr, when set, makes Summary fail.
	SummaryErr error

	// Invocations records every job passed to Invoke, in order.
	Invocations []Job

	// SummaryCalls records every dataset path passed to Summary.
	SummaryCalls []string
}

// NewMockEngine creates a mock with no scripted responses: every task
// succeeds with an empty result.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		Results: make(map[string]*JobResult),
		Errors:  make(map[string]error),
	}
}

func (m *MockEngine) Invoke(ctx context.Context, job Job) (*JobResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invocations = append(m.Invocations, job)

	if err := m.Errors[job.Task]; err != nil {
		return nil, fmt.Errorf("toolkit task %s on %s: %w", job.Task, job.Vis, err)
	}
	if res := m.Results[job.Task]; res != nil {
		return res, nil
	}
	return &JobResult{}, nil
}

func (m *MockEngine) Summary(ctx context.Context, visPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryCalls = append(m.SummaryCalls, visPath)

	if m.SummaryErr != nil {
		return nil, m.SummaryErr
	}
	return m.SummaryDoc, nil
}

// TasksInvoked returns the task names passed to Invoke, in call order.
func (m *MockEngine) TasksInvoked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Invocations))
	for i, j := range m.Invocations {
		out[i] = j.Task
	}
	return out
}
