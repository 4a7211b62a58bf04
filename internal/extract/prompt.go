package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/scimap/internal/model"
)

const systemPrompt = `You are an expert historian specializing in 18th century mathematics. Your task is to extract detailed timeline events from biographical text about mathematicians.

Extract events with the following criteria:
- Focus on years 1650-1850
- Include: birth, education, career positions, major publications, travels, death, significant collaborations, awards
- Provide exact years when possible, or year ranges for uncertain dates
- Include specific locations when mentioned (cities, institutions, countries)
- Assign confidence scores (0.0-1.0) based on text clarity and specificity
- Aim for 5-10 events per mathematician

IMPORTANT: Return ONLY a valid JSON array of events, no explanatory text.

Each event must have this exact structure:
{
  "year": integer or "year_start-year_end" for ranges,
  "year_confidence": "exact", "approximate", "range" or "estimated",
  "event_type": "birth"|"education"|"position"|"publication"|"travel"|"death"|"collaboration"|"award"|"other",
  "description": "detailed description of the event",
  "location": {
    "place_name": "specific location name or null",
    "raw_text": "original text mentioning location",
    "confidence": float between 0.0-1.0
  },
  "source_text": "relevant excerpt from biography (max 200 chars)",
  "confidence": float between 0.0-1.0
}`

const userPromptTemplate = `Extract comprehensive timeline events for mathematician %s from this biographical text.

Biographical text:
%s

Extract ALL significant events. Focus on:
- Educational milestones (university attendance, degrees, mentors)
- Career positions (professorships, academy memberships, appointments)
- Major publications and discoveries
- Travel and relocations
- Collaborations with other mathematicians
- Awards and recognition

Return only the JSON array, no other text.`

// BiographyText joins the leading paragraphs and truncates to maxChars
// runes, appending "..." when cut.
func BiographyText(bio model.Biography, paragraphs, maxChars int) string {
	parts := bio.Paragraphs
	if paragraphs > 0 && len(parts) > paragraphs {
		parts = parts[:paragraphs]
	}

	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	text := strings.Join(kept, " ")

	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		runes := []rune(text)
		text = string(runes[:maxChars]) + "..."
	}
	return text
}

func userPrompt(name, biography string) string {
	return fmt.Sprintf(userPromptTemplate, name, biography)
}
