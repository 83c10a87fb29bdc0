package config

// fillString copies src into dst when the operation left it empty.
func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// fillDefault points dst at the global value when the operation left it
// unset. The operation then shares the global setting rather than a copy.
func fillDefault[T any](dst **T, src *T) {
	if *dst == nil {
		*dst = src
	}
}

// applyOperationDefaults fills unset operation fields from the global AI
// block.
func (c *Config) applyOperationDefaults(op *OperationAIConfig) {
	fillString(&op.Provider, c.AI.Provider)
	fillString(&op.Model, c.AI.Model)
	fillString(&op.BaseURL, c.AI.BaseURL)
	fillString(&op.APIKey, c.AI.APIKey)
	fillDefault(&op.Timeout, &c.AI.Timeout)
	fillDefault(&op.MaxRetries, &c.AI.MaxRetries)
	fillDefault(&op.MaxTokens, &c.AI.MaxTokens)
	fillDefault(&op.Temperature, &c.AI.Temperature)
	fillDefault(&op.UseSystemPrompts, &c.AI.UseSystemPrompts)
}

// GetAnalyzeConfig resolves the effective AI configuration for the analyze
// operation. Unset fields inherit from the global block, including the
// custom prompt texts and the file paths they may still be loaded from.
func (c *Config) GetAnalyzeConfig() OperationAIConfig {
	op := c.AI.Analyze
	c.applyOperationDefaults(&op)

	sys, user := &op.CustomPrompts.SystemPrompts, &op.CustomPrompts.UserPrompts
	fillString(&sys.AnalyzeMatch, c.AI.CustomPrompts.SystemPrompts.AnalyzeMatch)
	fillString(&sys.AnalyzeMatchFile, c.AI.CustomPrompts.SystemPrompts.AnalyzeMatchFile)
	fillString(&user.AnalyzeMatch, c.AI.CustomPrompts.UserPrompts.AnalyzeMatch)
	fillString(&user.AnalyzeMatchFile, c.AI.CustomPrompts.UserPrompts.AnalyzeMatchFile)

	return op
}
