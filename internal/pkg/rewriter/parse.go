package rewriter

import (
	"strings"
)

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionExperience
	sectionSkills
)

var sectionHeadings = map[string]section{
	"summary":              sectionSummary,
	"profile":              sectionSummary,
	"professional summary": sectionSummary,
	"about":                sectionSummary,
	"experience":           sectionExperience,
	"work experience":      sectionExperience,
	"employment":           sectionExperience,
	"employment history":   sectionExperience,
	"skills":               sectionSkills,
	"technical skills":     sectionSkills,
	"core skills":          sectionSkills,
}

// Parse splits a plain-text CV into sections. Headings are single lines
// matching a known section name (case-insensitive, optional trailing colon);
// bullets start with -, * or the bullet character. Lines before the first
// recognized heading and unknown sections are preserved in Other.
func Parse(text string) Document {
	var doc Document
	current := sectionNone
	var summaryLines []string
	var entry *Entry

	flushEntry := func() {
		if entry != nil {
			doc.Experience = append(doc.Experience, *entry)
			entry = nil
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)

		if sec, ok := sectionHeadings[normalizeHeading(trimmed)]; ok {
			flushEntry()
			current = sec
			continue
		}
		if trimmed == "" {
			if current == sectionExperience {
				flushEntry()
			}
			continue
		}

		switch current {
		case sectionSummary:
			summaryLines = append(summaryLines, trimmed)
		case sectionExperience:
			if bullet, ok := stripBullet(trimmed); ok {
				if entry == nil {
					entry = &Entry{}
				}
				entry.Bullets = append(entry.Bullets, bullet)
			} else {
				flushEntry()
				entry = &Entry{Heading: trimmed}
			}
		case sectionSkills:
			for _, part := range splitSkills(trimmed) {
				doc.Skills = append(doc.Skills, parseSkill(part))
			}
		default:
			doc.Other = append(doc.Other, line)
		}
	}
	flushEntry()

	doc.Summary = strings.Join(summaryLines, " ")
	return doc
}

// Render writes the document back to plain text in the canonical section
// order. Parse and Render round-trip the structure, not the byte layout.
func (d Document) Render() string {
	var b strings.Builder

	for _, line := range d.Other {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if d.Summary != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Summary\n")
		b.WriteString(d.Summary)
		b.WriteString("\n")
	}
	if len(d.Experience) > 0 {
		b.WriteString("\nExperience\n")
		for i, entry := range d.Experience {
			if i > 0 {
				b.WriteString("\n")
			}
			if entry.Heading != "" {
				b.WriteString(entry.Heading)
				b.WriteString("\n")
			}
			for _, bullet := range entry.Bullets {
				b.WriteString("- ")
				b.WriteString(bullet)
				b.WriteString("\n")
			}
		}
	}
	if len(d.Skills) > 0 {
		b.WriteString("\nSkills\n")
		for _, skill := range d.Skills {
			b.WriteString("- ")
			b.WriteString(skill.Name)
			if skill.Level != "" {
				b.WriteString(" (")
				b.WriteString(skill.Level)
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func normalizeHeading(line string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(line), ":"))
}

func stripBullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return line, false
}

// splitSkills handles both one-per-line and comma-separated skill lists.
func splitSkills(line string) []string {
	if bullet, ok := stripBullet(line); ok {
		line = bullet
	}
	parts := strings.Split(line, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseSkill understands the "Name (Level)" form Render produces.
func parseSkill(raw string) Skill {
	if open := strings.LastIndex(raw, " ("); open > 0 && strings.HasSuffix(raw, ")") {
		return Skill{
			Name:  strings.TrimSpace(raw[:open]),
			Level: strings.TrimSuffix(raw[open+2:], ")"),
		}
	}
	return Skill{Name: raw}
}
