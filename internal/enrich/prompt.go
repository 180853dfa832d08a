package enrich

import "fmt"

var languageNames = map[string]string{
	"pt-BR": "Brazilian Portuguese (pt-BR)",
	"pt":    "Portuguese (pt)",
	"en":    "English (en)",
	"es":    "Spanish (es)",
}

func languageName(tag string) string {
	if name, ok := languageNames[tag]; ok {
		return name
	}
	return tag
}

// SystemPrompt is the fixed instruction sent with every request.
func SystemPrompt(lang string) string {
	return "You are a knowledge extraction assistant. " +
		"You analyze video transcripts and extract structured knowledge in " + languageName(lang) + ". " +
		"You always respond with valid JSON, without markdown code fences."
}

// UserPrompt embeds the title and the full transcript text.
func UserPrompt(title, transcript, lang string) string {
	name := languageName(lang)
	return fmt.Sprintf(`Analyze the transcript of the video "%s" and return one JSON object with exactly these fields:

1. "tldr": a 2-3 line summary in %s
2. "summary": a detailed Markdown summary, 5-20 paragraphs, in %s
3. "concepts": a list of key concepts, each an object with "name" and "definition" in %s

Transcript:
---
%s
---

Return ONLY the valid JSON object, without markdown code fences.`, title, name, name, name, transcript)
}
