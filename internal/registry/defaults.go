package registry

import "github.com/agentoven/console/pkg/models"

// DefaultAgents returns the built-in agents seeded into an empty registry.
func DefaultAgents() []models.AgentConfig {
	return []models.AgentConfig{
		{
			ID:                "general-assistant",
			Name:              "General Assistant",
			Description:       "A helpful assistant for everyday questions.",
			SystemInstruction: "You are a helpful, accurate and concise assistant. Ask a clarifying question when a request is ambiguous.",
			Model:             "gemini-2.5-flash",
			Style:             map[string]string{"color": "blue", "icon": "bot"},
			CurrentVersion:    1,
			PromptVersions:    []models.PromptVersion{},
			TestCases: []models.TestCase{
				{ID: "ga-1", Input: "What is the capital of France?", ExpectedOutput: "Paris"},
			},
		},
		{
			ID:                "code-reviewer",
			Name:              "Code Reviewer",
			Description:       "Reviews code for bugs, style and security issues.",
			SystemInstruction: "You are a senior software engineer reviewing code. Point out bugs first, then security issues, then style. Quote the lines you refer to.",
			Model:             "gemini-2.5-pro",
			Style:             map[string]string{"color": "green", "icon": "code"},
			CurrentVersion:    1,
			PromptVersions:    []models.PromptVersion{},
			TestCases:         []models.TestCase{},
		},
		{
			ID:                "support-agent",
			Name:              "Support Agent",
			Description:       "Answers customer support questions politely.",
			SystemInstruction: "You are a friendly customer support agent. Keep answers short, never promise refunds, and escalate when the customer is upset.",
			Model:             "gemini-2.5-flash",
			Style:             map[string]string{"color": "orange", "icon": "headset"},
			CurrentVersion:    1,
			PromptVersions:    []models.PromptVersion{},
			TestCases:         []models.TestCase{},
		},
	}
}
