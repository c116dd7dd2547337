// Package testutils provides shared helpers for tests across the codebase.
//
// Helper functions follow these naming conventions:
//   - Create*: build valid entities in memory without saving them
//   - MustInsert*: save entities through store.Stores and fail the test on error
//   - Clock: a manually advanced clock for deterministic time in tests
package testutils
