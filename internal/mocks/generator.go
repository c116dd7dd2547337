package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/scry-jobs/internal/generation"
)

// MockContentGenerator implements generation.ContentGenerator for testing.
type MockContentGenerator struct {
	// GenerateQuestionsFn overrides the default response when set
	GenerateQuestionsFn func(ctx context.Context, content string, max int) ([]generation.QA, error)

	// Default response values
	Pairs []generation.QA
	Err   error

	mu       sync.Mutex
	contents []string
	maxes    []int
}

// GenerateQuestions implements generation.ContentGenerator.
func (m *MockContentGenerator) GenerateQuestions(ctx context.Context, content string, max int) ([]generation.QA, error) {
	m.mu.Lock()
	m.contents = append(m.contents, content)
	m.maxes = append(m.maxes, max)
	m.mu.Unlock()

	if m.GenerateQuestionsFn != nil {
		return m.GenerateQuestionsFn(ctx, content, max)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Pairs, nil
}

// Calls returns the content passed to each call.
func (m *MockContentGenerator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.contents...)
}

// Maxes returns the max argument passed to each call.
func (m *MockContentGenerator) Maxes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.maxes...)
}

// MockHierarchyGenerator implements generation.HierarchyGenerator for testing.
type MockHierarchyGenerator struct {
	GenerateHierarchyFn func(ctx context.Context, topic string) (*generation.HierarchyDraft, error)

	Draft *generation.HierarchyDraft
	Err   error

	mu     sync.Mutex
	topics []string
}

// GenerateHierarchy implements generation.HierarchyGenerator.
func (m *MockHierarchyGenerator) GenerateHierarchy(ctx context.Context, topic string) (*generation.HierarchyDraft, error) {
	m.mu.Lock()
	m.topics = append(m.topics, topic)
	m.mu.Unlock()

	if m.GenerateHierarchyFn != nil {
		return m.GenerateHierarchyFn(ctx, topic)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Draft, nil
}

// Topics returns the topic passed to each call.
func (m *MockHierarchyGenerator) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.topics...)
}

// MockDistractorGenerator implements generation.DistractorGenerator for testing.
type MockDistractorGenerator struct {
	GenerateDistractorsFn func(ctx context.Context, question, answer string, count int) ([]string, error)

	Distractors []string
	Err         error

	mu     sync.Mutex
	counts []int
}

// GenerateDistractors implements generation.DistractorGenerator.
func (m *MockDistractorGenerator) GenerateDistractors(
	ctx context.Context,
	question, answer string,
	count int,
) ([]string, error) {
	m.mu.Lock()
	m.counts = append(m.counts, count)
	m.mu.Unlock()

	if m.GenerateDistractorsFn != nil {
		return m.GenerateDistractorsFn(ctx, question, answer, count)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if count < len(m.Distractors) {
		return m.Distractors[:count], nil
	}
	return m.Distractors, nil
}

// Counts returns the count passed to each call.
func (m *MockDistractorGenerator) Counts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.counts...)
}

var (
	_ generation.ContentGenerator    = (*MockContentGenerator)(nil)
	_ generation.HierarchyGenerator  = (*MockHierarchyGenerator)(nil)
	_ generation.DistractorGenerator = (*MockDistractorGenerator)(nil)
)
