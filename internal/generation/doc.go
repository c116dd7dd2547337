// Package generation defines the boundary between the job handlers and the
// LLM that produces learning material. Handlers depend on the generator
// interfaces here; platform/gemini implements them against the Gemini API
// and tests use hand-written fakes.
package generation
