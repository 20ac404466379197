package tasks

import (
	"context"
	"fmt"
)

// Analysis is the output of a text analysis task, consumed by translation
// tasks downstream.
type Analysis struct {
	Content string
}

const analysisSystemPrompt = `Analyze the given text and extract:
1. Main topics
2. Key points
3. Overall sentiment
Return the analysis as a structured text.`

// Analyze extracts topics, key points, and sentiment from a source text via
// the chat service.
type Analyze struct {
	Client Completer
	Text   string
}

// Run sends the source text for analysis.
func (a *Analyze) Run(ctx context.Context, inputs map[string]any) (any, error) {
	content, err := a.Client.Complete(ctx, analysisSystemPrompt, a.Text)
	if err != nil {
		return nil, fmt.Errorf("analyzing text: %w", err)
	}

	return Analysis{Content: content}, nil
}
