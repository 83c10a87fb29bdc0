package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// loadFilePrompts reads every configured prompt file into the shared
// prompt store. Inline prompt strings in the config are left alone; only the
// *File fields are resolved here.
func (c *Config) loadFilePrompts() error {
	filePromptsOnce.Do(func() {
		filePrompts = promptStore{}
	})

	sources := []struct {
		file       string
		scope      string
		promptType string
		target     *string
	}{
		{c.AI.CustomPrompts.SystemPrompts.AnalyzeMatchFile, "global", "system", &filePrompts.Global.SystemMatch},
		{c.AI.CustomPrompts.UserPrompts.AnalyzeMatchFile, "global", "user", &filePrompts.Global.UserMatch},
		{c.AI.Analyze.CustomPrompts.SystemPrompts.AnalyzeMatchFile, "analyze", "system", &filePrompts.Analyze.SystemMatch},
		{c.AI.Analyze.CustomPrompts.UserPrompts.AnalyzeMatchFile, "analyze", "user", &filePrompts.Analyze.UserMatch},
	}
	for _, src := range sources {
		if src.file == "" {
			continue
		}
		content, err := c.readPromptFile(src.file, src.promptType, "analyzeMatch")
		if err != nil {
			return fmt.Errorf("failed to load %s %s prompt: %w", src.scope, src.promptType, err)
		}
		*src.target = content
	}

	c.logPromptSummary()
	return nil
}

// readPromptFile reads one prompt file and rejects empty content.
func (c *Config) readPromptFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("resolving %s %s prompt path %q: %w", promptType, operation, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %s prompt file %s does not exist", promptType, operation, absPath)
		}
		return "", fmt.Errorf("reading %s %s prompt file %q: %w", promptType, operation, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file %q has no content", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Loaded %s %s prompt from %s (%d characters)",
		promptType, operation, absPath, len(trimmed))

	return trimmed, nil
}

// checkPromptFiles checks that every configured prompt file exists, and
// collects all problems into one error instead of stopping at the first.
func (c *Config) checkPromptFiles() error {
	var problems []string

	check := func(filePath, promptType, operation string) {
		if filePath == "" {
			return
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, operation, filePath))
			return
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("%s %s prompt file %s does not exist", promptType, operation, absPath))
		}
	}

	check(c.AI.CustomPrompts.SystemPrompts.AnalyzeMatchFile, "system", "analyzeMatch")
	check(c.AI.CustomPrompts.UserPrompts.AnalyzeMatchFile, "user", "analyzeMatch")
	check(c.AI.Analyze.CustomPrompts.SystemPrompts.AnalyzeMatchFile, "analyze system", "analyzeMatch")
	check(c.AI.Analyze.CustomPrompts.UserPrompts.AnalyzeMatchFile, "analyze user", "analyzeMatch")

	if len(problems) > 0 {
		return fmt.Errorf("prompt files failed validation:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// logPromptSummary reports which prompt slots came from files.
func (c *Config) logPromptSummary() {
	loaded := 0
	for _, p := range []struct {
		content string
		label   string
	}{
		{filePrompts.Global.SystemMatch, "global system"},
		{filePrompts.Global.UserMatch, "global user"},
		{filePrompts.Analyze.SystemMatch, "analyze system"},
		{filePrompts.Analyze.UserMatch, "analyze user"},
	} {
		if p.content != "" {
			log.Printf("[CONFIG] Custom %s prompt in use", p.label)
			loaded++
		}
	}

	if loaded == 0 {
		log.Println("[CONFIG] No custom prompts loaded, using built-in defaults")
	} else {
		log.Printf("[CONFIG] Custom prompts loaded: %d", loaded)
	}
}
