package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Merged is the combined output of the translation pipeline.
type Merged struct {
	Translations []Translation
	Summary      string
}

// Merge collects every Translation present in its inputs into one document.
// Translations are declared as optional dependencies, so a single failed
// translation shrinks the merge instead of killing it; inputs of other types
// are ignored.
type Merge struct{}

// Run merges the available translations in deterministic input-key order.
func (m *Merge) Run(ctx context.Context, inputs map[string]any) (any, error) {
	keys := make([]string, 0, len(inputs))
	for key := range inputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var translations []Translation
	for _, key := range keys {
		if tr, ok := inputs[key].(Translation); ok {
			translations = append(translations, tr)
		}
	}

	if len(translations) == 0 {
		return nil, errors.New("no translations available to merge")
	}

	return Merged{
		Translations: translations,
		Summary:      fmt.Sprintf("Successfully merged %d translations", len(translations)),
	}, nil
}
