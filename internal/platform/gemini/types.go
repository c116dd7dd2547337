package gemini

import "github.com/phrazzld/scry-jobs/internal/generation"

// questionsResponse is the JSON the model returns for question generation.
type questionsResponse struct {
	Questions []generation.QA `json:"questions"`
}

// distractorsResponse is the JSON the model returns for distractor generation.
type distractorsResponse struct {
	Distractors []string `json:"distractors"`
}
