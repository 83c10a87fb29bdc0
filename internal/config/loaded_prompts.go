package config

import (
	"sync"
)

// The prompt store is filled once during configuration loading and read by
// the AI providers afterwards.
var (
	filePrompts     promptStore
	filePromptsOnce sync.Once
)

// PromptSet is one scope's worth of file-backed prompt content.
type PromptSet struct {
	SystemMatch string
	UserMatch   string
}

// promptStore holds the global prompt set plus one entry per operation.
type promptStore struct {
	Global  PromptSet
	Analyze PromptSet
}

// PromptsFor returns the loaded prompts for an operation type, falling back
// to the global set for types without their own entry.
func PromptsFor(operationType string) PromptSet {
	if operationType == "analyze" {
		return filePrompts.Analyze
	}
	return filePrompts.Global
}
