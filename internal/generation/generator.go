package generation

import (
	"context"
	"strings"
)

// QA is one generated question with its answer.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Valid reports whether both sides are non-blank.
func (q QA) Valid() bool {
	return strings.TrimSpace(q.Question) != "" && strings.TrimSpace(q.Answer) != ""
}

// ContentGenerator produces question/answer pairs from source text.
type ContentGenerator interface {
	// GenerateQuestions returns up to max pairs for content. Implementations
	// may return fewer; callers must not assume exactly max.
	GenerateQuestions(ctx context.Context, content string, max int) ([]QA, error)
}

// DraftNode is one topic in a generated hierarchy.
type DraftNode struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Children    []DraftNode `json:"children,omitempty"`
}

// HierarchyDraft is a generated, not yet persisted, topic tree.
type HierarchyDraft struct {
	Title string      `json:"title"`
	Nodes []DraftNode `json:"nodes"`
}

// Count returns the number of nodes in the draft at every depth.
func (d *HierarchyDraft) Count() int {
	var count func(nodes []DraftNode) int
	count = func(nodes []DraftNode) int {
		n := len(nodes)
		for _, node := range nodes {
			n += count(node.Children)
		}
		return n
	}
	return count(d.Nodes)
}

// HierarchyGenerator breaks a topic into a tree of subtopics.
type HierarchyGenerator interface {
	GenerateHierarchy(ctx context.Context, topic string) (*HierarchyDraft, error)
}

// DistractorGenerator produces plausible wrong answers for a question.
type DistractorGenerator interface {
	GenerateDistractors(ctx context.Context, question, answer string, count int) ([]string, error)
}
