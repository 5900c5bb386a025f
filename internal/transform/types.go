// Package transform rewrites a note's transcript with an LLM: summaries,
// quick notes, bullet lists, blog posts and emails.
package transform

import (
	"fmt"
	"strings"
)

// Type is one kind of rewrite.
type Type struct {
	Value string
	Name  string
}

// Types lists every supported rewrite, in menu order.
var Types = []Type{
	{Value: "summary", Name: "Summary"},
	{Value: "quick-note", Name: "Quick Note"},
	{Value: "list", Name: "List"},
	{Value: "blog", Name: "Blog Post"},
	{Value: "email", Name: "Email"},
}

// Lookup finds a type by its value.
func Lookup(value string) (Type, error) {
	for _, t := range Types {
		if t.Value == value {
			return t, nil
		}
	}
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = t.Value
	}
	return Type{}, fmt.Errorf("unknown transformation %q (choose from %s)", value, strings.Join(names, ", "))
}

func (t Type) instruction() string {
	switch t.Value {
	case "summary":
		return "Return a summary of the transcription with a maximum of 100 words."
	case "quick-note":
		return "Return a quick post-it style note."
	case "list":
		return "Return a bullet point list of the main points of the transcription."
	case "blog":
		return "Return the Markdown of an entire blog post with subheadings."
	case "email":
		return "Write an email: a subject line, then a short body with an introductory paragraph and a closing paragraph thanking the reader."
	}
	return ""
}

func (t Type) format() string {
	if t.Value == "blog" {
		return "Markdown"
	}
	return "plain text"
}

// Prompt builds the single user prompt sent to the model.
func Prompt(t Type, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You will be given the transcription of an audio recording. Generate a %s based on it.\n", t.Name)
	b.WriteString("Only output the generation itself, with no introduction, explanation or extra commentary.\n\n")
	fmt.Fprintf(&b, "The transcription is: %s\n\n", transcript)
	b.WriteString(t.instruction())
	fmt.Fprintf(&b, "\nReturn %s and nothing else.\n", t.format())
	b.WriteString("Write in the same language as the transcription.\n")
	b.WriteString(`Do not add phrases like "Based on the transcription" or "Let me know if you need anything else."`)
	return b.String()
}
