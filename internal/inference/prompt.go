package inference

import (
	"fmt"
	"strings"
)

const instructionTemplate = `Answer the following query "%s" using the context provided below. Ignore irrelevant information.
Do not address the user directly.
Answer must be concise, informative, and relevant to the query.
Always write one or more sources (format: [source N] or <sourceN>) for each fact, claim, section or paragraph you write. Examples: "Water is wet. [source 1]", "Fire is hot. [source 1][source 2]"`

// BuildPrompt returns the instruction message followed by the context
// message listing each document under a "[source N]" header.
func BuildPrompt(query string, docs []string) []Message {
	var b strings.Builder
	b.WriteString("Context:")
	for i, d := range docs {
		fmt.Fprintf(&b, "\n\n[source %d]\n%s", i+1, strings.TrimSpace(d))
	}
	return []Message{
		{Role: RoleSystem, Content: fmt.Sprintf(instructionTemplate, strings.TrimSpace(query))},
		{Role: RoleUser, Content: b.String()},
	}
}

// TruncateTokens cuts text to at most limit tokens. Text already within the
// limit is returned unchanged.
func TruncateTokens(tok Tokenizer, text string, limit int) (string, error) {
	if limit <= 0 {
		return text, nil
	}
	ids, err := tok.Encode(text)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	if len(ids) <= limit {
		return text, nil
	}
	out, err := tok.Decode(ids[:limit])
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return out, nil
}
