package pipeline

import (
	"fmt"
	"strings"

	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/history"
)

type promptInput struct {
	Organization string
	Query        string
	Department   department.Department
	Evidence     string
	History      []history.Turn
	LastContext  string
	LastFollowup string
}

// buildPrompt assembles the JSON-only instruction prompt. The schema and
// rules are part of the contract with ParseAnswer: the model must reply
// with a single JSON object matching Answer.
func buildPrompt(in promptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an AI assistant for the organization: %s.\n", in.Organization)
	fmt.Fprintf(&b, "Your task is to answer questions about %s's policies, procedures, and related topics.\n\n", in.Organization)

	b.WriteString("YOU MUST RESPOND ONLY WITH A VALID JSON OBJECT, NOTHING ELSE.\n")
	b.WriteString("DO NOT WRITE ANY TEXT OUTSIDE THE JSON.\n\n")

	b.WriteString("### JSON SCHEMA\n")
	b.WriteString("{\n")
	b.WriteString("    \"org_related\": true | false,\n")
	b.WriteString("    \"has_context\": true | false,\n")
	b.WriteString("    \"answer\": \"string (3-4 full sentences, professional, concise)\",\n")
	b.WriteString("    \"dept\": \"the department this question belongs to\",\n")
	b.WriteString("    \"followup\": \"string (suggest a relevant next step or question)\",\n")
	b.WriteString("    \"std_question\": \"string (standalone version of the user's question)\"\n")
	b.WriteString("}\n\n")

	b.WriteString("### RULES (STRICT)\n")
	b.WriteString("1. ALWAYS return JSON only.\n")
	fmt.Fprintf(&b, "2. Focus strictly on %s. If the question is unrelated, set \"org_related\": false and say so politely.\n", in.Organization)
	b.WriteString("3. If the knowledge base context is insufficient, set \"has_context\": false and say you do not have enough information at the moment.\n")
	b.WriteString("4. Handle greetings, thanks, and yes/no confirmations warmly, still in JSON.\n")
	b.WriteString("5. For valid questions, give a complete professional answer and a follow-up that encourages further discussion.\n")
	b.WriteString("6. NEVER include disclaimers, citations, or meta-comments like \"Based on context.\"\n\n")

	b.WriteString("### CONTEXT\n")
	fmt.Fprintf(&b, "Knowledge Base: %s\n\n", in.Evidence)
	fmt.Fprintf(&b, "Conversation History: %s\n\n", formatHistory(in.History))
	fmt.Fprintf(&b, "Last Context: %s\n\n", in.LastContext)
	fmt.Fprintf(&b, "Last Follow-up: %s\n\n", in.LastFollowup)
	fmt.Fprintf(&b, "User Question: %s\n\n", in.Query)
	fmt.Fprintf(&b, "Detected Department: %s\n\n", in.Department)

	b.WriteString("### INSTRUCTIONS\n")
	b.WriteString("- Use ONLY the provided context and history.\n")
	b.WriteString("- Be concise, professional, and structured.\n")
	b.WriteString("- Output must be a single properly formatted JSON object as defined above.\n")

	return b.String()
}

func formatHistory(turns []history.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = fmt.Sprintf("User: %s AI: %s", t.Question, t.Answer)
	}
	return strings.Join(parts, " | ")
}
