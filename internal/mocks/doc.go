// Package mocks provides centralized mock implementations for testing.
//
// Each mock has function fields for its interface methods and records the
// calls it receives, so tests can both stub behavior and verify usage.
//
// Usage:
//
//	gen := &mocks.MockContentGenerator{
//	    GenerateQuestionsFn: func(ctx context.Context, content string, max int) ([]generation.QA, error) {
//	        return []generation.QA{{Question: "q", Answer: "a"}}, nil
//	    },
//	}
package mocks
