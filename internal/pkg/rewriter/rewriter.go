// Package rewriter tailors a stored CV to a job description. It is a
// deterministic text transform: keyword extraction, section-aware
// enhancement, and improvement suggestions, with no external calls.
package rewriter

import (
	"fmt"
	"regexp"
	"strings"
)

// Document is a CV split into the sections the rewriter understands.
// Anything outside a recognized section is preserved untouched.
type Document struct {
	Summary    string
	Experience []Entry
	Skills     []Skill
	Other      []string
}

// Entry is one work-experience position with its bullet points.
type Entry struct {
	Heading string
	Bullets []string
}

// Skill is one entry of the skills section.
type Skill struct {
	Name  string
	Level string
}

// Result carries the rewritten document plus what the rules matched and
// suggest.
type Result struct {
	Rewritten    Document
	Matches      Matches
	Improvements []string
}

// Matches lists the overlap found between the CV and the job description.
type Matches struct {
	Skills     []string
	Experience []string
}

// commonKeywords are the terms scanned for in job descriptions.
var commonKeywords = []string{
	"javascript", "typescript", "react", "node", "next.js", "html", "css",
	"tailwind", "api", "rest", "graphql", "database", "sql", "nosql",
	"mongodb", "postgresql", "frontend", "backend", "fullstack", "cloud",
	"aws", "azure", "gcp", "agile", "scrum", "kanban", "ci/cd", "git",
	"github", "testing", "unit test", "integration test", "mobile",
	"responsive", "ui/ux", "design", "project management",
	"go", "golang", "python", "java", "kubernetes", "docker", "terraform",
}

// commonTitles are job titles recognized in descriptions.
var commonTitles = []string{
	"software engineer", "frontend developer", "backend developer",
	"fullstack developer", "web developer", "ux designer",
	"project manager", "product manager", "data scientist",
	"devops engineer", "qa engineer", "systems architect",
}

var quantifiablePattern = regexp.MustCompile(`(?i)\d+%|\d+ percent|increased|decreased|improved|reduced|generated|saved|managed \d+`)

// Rewrite tailors doc to the job description and returns the enhanced copy
// together with matches and suggestions. The input document is not modified.
func Rewrite(doc Document, jobDescription string) Result {
	keywords := ExtractKeywords(jobDescription)
	matches := findMatches(doc, keywords)

	out := doc.clone()
	enhanceSummary(&out, jobDescription, keywords)
	enhanceExperience(&out, keywords)
	enhanceSkills(&out, matches.Skills)

	return Result{
		Rewritten:    out,
		Matches:      matches,
		Improvements: improvements(doc, keywords),
	}
}

// RewriteText is the plain-text entry point used by the web layer: parse,
// rewrite, render.
func RewriteText(cvText, jobDescription string) (string, Result) {
	doc := Parse(cvText)
	result := Rewrite(doc, jobDescription)
	return result.Rewritten.Render(), result
}

// ExtractKeywords returns the known keywords present in the job description.
func ExtractKeywords(jobDescription string) []string {
	lower := strings.ToLower(jobDescription)
	var found []string
	for _, keyword := range commonKeywords {
		if containsWord(lower, keyword) {
			found = append(found, keyword)
		}
	}
	return found
}

// containsWord matches keyword at word boundaries so "go" does not fire on
// "google". Multi-word keywords fall back to substring matching.
func containsWord(haystack, keyword string) bool {
	if strings.ContainsAny(keyword, " ./") {
		return strings.Contains(haystack, keyword)
	}
	pattern := regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(keyword) + `($|[^a-z0-9])`)
	return pattern.MatchString(haystack)
}

func findMatches(doc Document, keywords []string) Matches {
	var m Matches
	for _, skill := range doc.Skills {
		name := strings.ToLower(skill.Name)
		for _, keyword := range keywords {
			if strings.Contains(name, keyword) || strings.Contains(keyword, name) {
				m.Skills = append(m.Skills, skill.Name)
				break
			}
		}
	}
	seen := map[string]bool{}
	for _, entry := range doc.Experience {
		for _, bullet := range entry.Bullets {
			lower := strings.ToLower(bullet)
			for _, keyword := range keywords {
				if strings.Contains(lower, keyword) && !seen[keyword] {
					seen[keyword] = true
					m.Experience = append(m.Experience, keyword)
				}
			}
		}
	}
	return m
}

func enhanceSummary(doc *Document, jobDescription string, keywords []string) {
	lead := topKeywords(keywords, 3)
	if doc.Summary == "" {
		if lead != "" {
			doc.Summary = fmt.Sprintf("Experienced professional with skills in %s.", lead)
		}
		return
	}

	title := extractJobTitle(jobDescription)
	base := strings.TrimSuffix(strings.TrimSpace(doc.Summary), ".")
	switch {
	case title != "" && !strings.Contains(strings.ToLower(doc.Summary), title):
		doc.Summary = fmt.Sprintf("%s, seeking a %s role where skills in %s can be utilized.", base, title, lead)
	case lead != "":
		doc.Summary = fmt.Sprintf("%s. Proficient in %s.", base, lead)
	}
}

func extractJobTitle(jobDescription string) string {
	lower := strings.ToLower(jobDescription)
	for _, title := range commonTitles {
		if strings.Contains(lower, title) {
			return title
		}
	}
	return ""
}

func enhanceExperience(doc *Document, keywords []string) {
	for i := range doc.Experience {
		for j, bullet := range doc.Experience[i].Bullets {
			lower := strings.ToLower(bullet)
			for _, keyword := range keywords {
				idx := strings.Index(lower, keyword)
				if idx < 0 {
					continue
				}
				match := bullet[idx : idx+len(keyword)]
				doc.Experience[i].Bullets[j] = strings.Replace(bullet, match, match+" (key skill for this role)", 1)
				break
			}
		}
	}
}

func enhanceSkills(doc *Document, matched []string) {
	for i := range doc.Skills {
		if doc.Skills[i].Level != "" {
			continue
		}
		for _, name := range matched {
			if doc.Skills[i].Name == name {
				doc.Skills[i].Level = "Advanced"
				break
			}
		}
	}
}

func improvements(doc Document, keywords []string) []string {
	var out []string

	var missing []string
	for _, keyword := range keywords {
		covered := false
		for _, skill := range doc.Skills {
			name := strings.ToLower(skill.Name)
			if strings.Contains(name, keyword) || strings.Contains(keyword, name) {
				covered = true
				break
			}
		}
		if !covered {
			missing = append(missing, keyword)
		}
	}
	if len(missing) > 0 {
		out = append(out, "Consider adding these skills to your CV: "+strings.Join(missing, ", "))
	}

	if len(strings.Fields(doc.Summary)) < 10 {
		out = append(out, "Add a more detailed professional summary highlighting your experience and skills")
	}

	quantified := false
	for _, entry := range doc.Experience {
		for _, bullet := range entry.Bullets {
			if quantifiablePattern.MatchString(bullet) {
				quantified = true
				break
			}
		}
	}
	if !quantified {
		out = append(out, `Add quantifiable achievements to your work experience (e.g., "Increased sales by 20%")`)
	}

	if lead := topKeywords(keywords, 3); lead != "" {
		out = append(out, "Include specific examples of projects related to "+lead)
	}
	return out
}

func topKeywords(keywords []string, n int) string {
	if len(keywords) < n {
		n = len(keywords)
	}
	return strings.Join(keywords[:n], ", ")
}

func (d Document) clone() Document {
	out := Document{Summary: d.Summary}
	out.Experience = make([]Entry, len(d.Experience))
	for i, entry := range d.Experience {
		out.Experience[i] = Entry{Heading: entry.Heading, Bullets: append([]string(nil), entry.Bullets...)}
	}
	out.Skills = append([]Skill(nil), d.Skills...)
	out.Other = append([]string(nil), d.Other...)
	return out
}
