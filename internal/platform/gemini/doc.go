// Package gemini implements the generation interfaces using Google's Gemini API.
//
// Each generator call renders an embedded prompt template, asks the model
// for a JSON response and parses it. Transient API failures are retried with
// exponential backoff and jitter; blocked or malformed responses are not.
package gemini
