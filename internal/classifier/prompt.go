package classifier

import "strings"

const (
	promptInstruction = "I want to determine if the following abstract from a journal article talks about " +
		"ferroptosis, SkyClarys or omaveloxolone, neither, or both. Please provide only the category."

	// PromptMarker delimits the abstract inside the prompt.
	PromptMarker = "---"
)

// BuildPrompt embeds the abstract verbatim between two marker lines.
func BuildPrompt(text string) string {
	var b strings.Builder
	b.Grow(len(promptInstruction) + len(text) + 2*len(PromptMarker) + 6)

	b.WriteString("\n")
	b.WriteString(promptInstruction)
	b.WriteString("\n\n")
	b.WriteString(PromptMarker)
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(PromptMarker)
	b.WriteString("\n")

	return b.String()
}
