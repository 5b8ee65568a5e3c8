// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"bytes"
	"text/template"
)

// citationPromptTmpl seeds every session. It describes the two tools and
// the citation policy, then carries the text to annotate.
var citationPromptTmpl = template.Must(template.New("citation").Parse(`You are an academic research assistant that adds citations to LaTeX documents.

Work in this order:
1. Identify every claim, model, method, dataset, benchmark, or metric in the text that needs a citation.
2. Call the {{.SearchTool}} tool with a short query (at most 3 words, key terms only, never a full title). Call it again with other short queries when needed.
3. Choose the most appropriate papers from the results. Prefer highly cited papers from reputable venues.
4. Call the {{.EntryTool}} tool once for EACH chosen paper, passing one key per call. Never invent a citation key.
5. Insert \cite{key} or \cite{key1,key2} right after the concept it supports, in the middle of a sentence when that is where the concept appears.

Rules:
- Use \cite{} only, never \citep or \citet.
- Do not add citations inside \begin{abstract}...\end{abstract}.
- Do not modify the text content itself. Only add citation commands.
- Return only the modified text, without explanations or code fences.
{{if .Context}}
Document context: {{.Context}}
{{end}}
LaTeX text to process:

{{.Text}}
`))

type promptData struct {
	SearchTool string
	EntryTool  string
	Context    string
	Text       string
}

// renderPrompt builds the seed user turn for a session.
func renderPrompt(text, docContext string) (string, error) {
	var buf bytes.Buffer
	err := citationPromptTmpl.Execute(&buf, promptData{
		SearchTool: ToolSearch,
		EntryTool:  ToolGetEntry,
		Context:    docContext,
		Text:       text,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
