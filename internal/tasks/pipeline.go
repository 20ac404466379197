package tasks

import (
	"fmt"
	"strings"

	"github.com/aristath/taskgraph/internal/scheduler"
)

// Well-known task IDs used by the translation pipeline.
const (
	AnalyzeTaskID = "analyze"
	MergeTaskID   = "merge"
)

// TranslateTaskID returns the task ID for a target language's translation.
func TranslateTaskID(language string) string {
	return "translate-" + strings.ToLower(language)
}

// BuildTranslationPipeline registers the analyze -> translate(lang)xN ->
// merge graph on the scheduler. Each translation requires the analysis; the
// merge optionally depends on every translation so partial results still
// produce a merged document. Timeouts and retry policies come from the
// scheduler defaults.
func BuildTranslationPipeline(s *scheduler.Scheduler, client Completer, text string, languages []string) error {
	if len(languages) == 0 {
		return fmt.Errorf("no target languages configured")
	}

	if err := s.AddTask(&scheduler.Task{
		ID:     AnalyzeTaskID,
		Runner: &Analyze{Client: client, Text: text},
	}); err != nil {
		return fmt.Errorf("adding analysis task: %w", err)
	}

	translateIDs := make([]string, 0, len(languages))
	for _, language := range languages {
		id := TranslateTaskID(language)
		translateIDs = append(translateIDs, id)

		if err := s.AddTask(&scheduler.Task{
			ID:       id,
			Requires: []string{AnalyzeTaskID},
			Runner:   &Translate{Client: client, Language: language, Source: AnalyzeTaskID},
		}); err != nil {
			return fmt.Errorf("adding translation task for %s: %w", language, err)
		}
	}

	if err := s.AddTask(&scheduler.Task{
		ID:       MergeTaskID,
		Optional: translateIDs,
		Runner:   &Merge{},
	}); err != nil {
		return fmt.Errorf("adding merge task: %w", err)
	}

	return nil
}
