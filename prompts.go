package notebook

import "strings"

const answerSystemPrompt = `You are a reading assistant answering questions about a single document.

Answer the user's latest message using only the excerpts provided. Each excerpt starts with
its section and page numbers in brackets; cite pages when you rely on them. If the excerpts
do not contain the answer, say so plainly instead of guessing. Keep answers concise.`

// answerPrompt lays out the retrieved excerpts followed by the conversation,
// whose last line is the question being answered.
func answerPrompt(excerpts, transcript string) string {
	var sb strings.Builder
	sb.WriteString("Excerpts:\n\n")
	sb.WriteString(excerpts)
	sb.WriteString("\n\nConversation:\n\n")
	sb.WriteString(transcript)
	return sb.String()
}
