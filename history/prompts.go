package history

const summarySystemPrompt = `You condense conversations about a document.

Summarize the conversation below in 2-3 sentences. Keep the questions the user asked,
the facts the assistant established and any open threads. Write plain prose with no
preamble and no bullet points.`
