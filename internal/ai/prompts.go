package ai

import (
	"fmt"

	"resumatch/internal/config"
)

// MatchPrompts holds one prompt string per analysis operation.
type MatchPrompts struct {
	AnalyzeMatch string
}

// DefaultSystemPrompts provides the default system instructions
var DefaultSystemPrompts = MatchPrompts{
	AnalyzeMatch: `You are a highly sophisticated ATS (Applicant Tracking System) scanner and a professional recruitment consultant. Your task is to analyze a resume against a job description and return a structured JSON object.

Your core principles are:

- Base every observation strictly on the provided documents
- Score conservatively and consistently from one analysis to the next
- Keep feedback concise, constructive, and actionable
- Never invent skills, keywords, or contact details that are not present in the resume`,
}

// DefaultUserPrompts provides the default user prompt templates.
// The analyze template takes the job description first, then the resume text.
var DefaultUserPrompts = MatchPrompts{
	AnalyzeMatch: `Analyze the following resume against the job description and return a structured JSON object.

**Job Description:**
---
%s
---

**Resume Text:**
---
%s
---

Please provide the following analysis in a single JSON object with the specified keys:
1. "ats_score": An integer percentage (0-100) representing how well the resume matches the job description.
2. "missing_keywords": A JSON array of important keywords or skills from the job description that are missing in the resume.
3. "feedback": A concise, constructive summary providing actionable advice to improve the resume for this specific job.
4. "extracted_skills": A JSON array of skills found in the resume.
5. "contact_info": A JSON object containing "emails" (an array of strings) and "phone_numbers" (an array of strings) extracted from the resume.

**Example JSON Output:**
{
    "ats_score": 85,
    "missing_keywords": ["Project Management", "Agile Methodology", "Data Visualization"],
    "feedback": "The resume is strong but could be improved by quantifying achievements in past roles and adding a project section that highlights experience with Agile methodologies.",
    "extracted_skills": ["Python", "SQL", "Cloud Infrastructure", "Data Analysis"],
    "contact_info": {
        "emails": ["example.email@domain.com"],
        "phone_numbers": ["+1234567890"]
    }
}

Now, generate the JSON output for the provided resume and job description.`,
}

// analyzeSystemPrompt resolves the analyze system prompt for an operation config
func analyzeSystemPrompt(cfg *config.OperationAIConfig) string {
	loaded := config.PromptsFor("analyze")
	return resolvePrompt(
		loaded.SystemMatch,
		cfg.CustomPrompts.SystemPrompts.AnalyzeMatch,
		DefaultSystemPrompts.AnalyzeMatch,
	)
}

// analyzeUserPrompt resolves the analyze user prompt template for an operation
// config and formats it with the job description and resume text, in that order
func analyzeUserPrompt(cfg *config.OperationAIConfig, jobDescription, resumeText string) string {
	loaded := config.PromptsFor("analyze")
	template := resolvePrompt(
		loaded.UserMatch,
		cfg.CustomPrompts.UserPrompts.AnalyzeMatch,
		DefaultUserPrompts.AnalyzeMatch,
	)
	return fmt.Sprintf(template, jobDescription, resumeText)
}

// resolvePrompt returns the first non-empty candidate. Callers list
// file-loaded content first, then configured text, then the built-in
// default, so a file always wins over inline config.
func resolvePrompt(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
