package agentrun

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/jokas3322/coro-code/internal/prompt"
)

// BuildSystemPrompt composes Message[0] of a new conversation.
//
// Two shapes, matching the pre-loop setup in spec §4.E:
//   - a caller-supplied custom prompt (AgentConfig.SystemPrompt), used as-is
//     plus a minimal system-context block (OS/arch only, no project path —
//     a custom prompt is meant to describe a different persona entirely, not
//     get the project context grafted back on underneath it); or
//   - the default prompt (the workspace's L2 soul + L3 user rules via
//     loader, falling back to the embedded default soul when the workspace
//     supplies neither) composed with full project context (OS, arch, cwd).
//
// The available tool list is appended in both cases.
func BuildSystemPrompt(systemPrompt string, projectPath string, toolNames []string, loader *prompt.PromptLoader) string {
	var base string
	if systemPrompt != "" {
		base = fmt.Sprintf("%s\n\n[System Context]:\n%s", systemPrompt, systemContext())
	} else {
		base = defaultSystemPrompt(projectPath, loader)
	}
	return fmt.Sprintf("%s\n\nAvailable tools: %s", base, strings.Join(toolNames, ", "))
}

// systemContext is the minimal block carried alongside a custom system
// prompt: just enough for the model to know what host it's running on,
// without implying anything about which project it's scoped to.
func systemContext() string {
	return fmt.Sprintf(
		"System Information:\n- Operating System: %s\n- Architecture: %s",
		runtime.GOOS, runtime.GOARCH,
	)
}

// defaultSystemPrompt builds the full default prompt: soul persona (L2,
// overridable at the workspace root) + user rules (L3, if present) + full
// project context including the working directory.
func defaultSystemPrompt(projectPath string, loader *prompt.PromptLoader) string {
	var sb strings.Builder

	if loader != nil {
		if soul := strings.TrimSpace(loader.LoadSoul()); soul != "" {
			sb.WriteString(soul)
			sb.WriteString("\n\n")
		}
		if rules := strings.TrimSpace(loader.LoadUserRules()); rules != "" {
			sb.WriteString("Project-specific rules:\n")
			sb.WriteString(rules)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("System Information:\n")
	sb.WriteString(fmt.Sprintf("- Operating System: %s\n", runtime.GOOS))
	sb.WriteString(fmt.Sprintf("- Architecture: %s\n", runtime.GOARCH))
	sb.WriteString(fmt.Sprintf("- Project root path: %s\n", projectPath))
	sb.WriteString("\nIMPORTANT: When using tools that require file paths, always use absolute paths rooted at the project root path above.")

	return sb.String()
}
