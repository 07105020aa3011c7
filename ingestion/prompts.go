package ingestion

const summarySystemPrompt = `You summarize one chapter of a book or document for a reader's notebook.
Write 3 to 5 plain sentences covering the chapter's main points in the order they appear.
Do not add a preamble, a title, bullet points, or opinions. Use only the text provided.`

const metadataSystemPrompt = `You catalog documents. From the opening text of a document, return a JSON object
with exactly these keys:

{"title": string, "author": string, "summary": string, "keywords": [string]}

Rules:
- "title" is the document's own title if stated, otherwise a short descriptive title.
- "author" is the stated author, or "" when none is given.
- "summary" is 2 or 3 sentences describing what the document covers.
- "keywords" holds 3 to 8 lowercase keywords or short phrases.
- Output ONLY the JSON object with no surrounding text.`
