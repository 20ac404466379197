package tasks

import (
	"context"
	"fmt"
)

// Translation is the output of a translation task.
type Translation struct {
	Language string
	Content  string
}

// Translate renders an upstream analysis into a target language via the chat
// service. Source names the analysis task whose output this task consumes;
// it must be declared as a required dependency so the input is present.
type Translate struct {
	Client   Completer
	Language string
	Source   string
}

// Run translates the upstream analysis.
func (t *Translate) Run(ctx context.Context, inputs map[string]any) (any, error) {
	raw, ok := inputs[t.Source]
	if !ok {
		return nil, fmt.Errorf("translation input %q missing", t.Source)
	}

	analysis, ok := raw.(Analysis)
	if !ok {
		return nil, fmt.Errorf("translation input %q has unexpected type %T", t.Source, raw)
	}

	systemPrompt := fmt.Sprintf(
		"Translate the following text to %s.\nMaintain the original structure and formatting.",
		t.Language,
	)

	content, err := t.Client.Complete(ctx, systemPrompt, analysis.Content)
	if err != nil {
		return nil, fmt.Errorf("translating to %s: %w", t.Language, err)
	}

	return Translation{Language: t.Language, Content: content}, nil
}
