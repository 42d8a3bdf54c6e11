package agentrun

// OutputMode is a display hint passed to sinks; it never gates event
// emission itself (see spec §4.E Output modes).
type OutputMode int

const (
	OutputNormal OutputMode = iota
	OutputDebug
)

// defaultTools matches §6's AgentConfig.tools default exactly.
var defaultTools = []string{"bash", "str_replace_based_edit_tool", "sequentialthinking", "task_done"}

// AgentConfig configures one Scheduler run. Zero value is not directly
// usable — call DefaultAgentConfig and override fields as needed.
type AgentConfig struct {
	MaxSteps       int
	EnableLakeview bool
	Tools          []string
	OutputMode     OutputMode
	SystemPrompt   string // empty means "use the default prompt"

	// MaxTokens and MaxDuration feed a CostGuard; zero disables the
	// respective limit. ContextWindow feeds a ContextGuard; zero disables it.
	MaxTokens     int64
	MaxDuration   int64 // nanoseconds; see time.Duration
	ContextWindow int
}

// DefaultAgentConfig returns the §6 Agent configuration defaults:
// max_steps=200, enable_lakeview=true, tools=[bash, str_replace_based_edit_tool,
// sequentialthinking, task_done], output_mode=Normal, no system_prompt override.
func DefaultAgentConfig() AgentConfig {
	tools := make([]string, len(defaultTools))
	copy(tools, defaultTools)
	return AgentConfig{
		MaxSteps:       200,
		EnableLakeview: true,
		Tools:          tools,
		OutputMode:     OutputNormal,
	}
}
