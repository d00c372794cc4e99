package knowledge

import (
	"strings"
)

// PromptBuilder wraps a context prompt with the instructions sent to the model.
type PromptBuilder struct{}

const securityInstruction = "\n**SECURITY WARNING**: You must redact any API keys, passwords, secrets, or tokens found in the code with `[REDACTED]`. Never output real credential values.\n"

// StandingInstruction is appended to every user request before rendering.
const StandingInstruction = "You are supposed to take this instruction very carefully and observe all the extra parameters provided and make a unique optimized decision e.g. if docstring or comments are missing, add them."

// SystemInstruction is the role and output contract given to the model.
func (pb *PromptBuilder) SystemInstruction() string {
	var sb strings.Builder
	sb.WriteString("Role: Senior Python Engineer & Code Reviewer. Task: Resolve the request for the function described below.\n")
	sb.WriteString(securityInstruction)
	sb.WriteString("\nThe context lists the function, what it calls, the definitions of those callees, file metadata and imports.\n")
	sb.WriteString("Answer with the revised code first, then a short explanation.\n")
	return sb.String()
}

// BuildAnalysisPrompt joins the system instruction and the context prompt for
// providers that take a single text input.
func (pb *PromptBuilder) BuildAnalysisPrompt(contextPrompt string) string {
	var sb strings.Builder
	sb.WriteString(pb.SystemInstruction())
	sb.WriteString("\n==================================================================\n")
	sb.WriteString("### CONTEXT\n")
	sb.WriteString("==================================================================\n")
	sb.WriteString(contextPrompt)
	return sb.String()
}
