package rewriter

import (
	"strings"
	"testing"
)

const sampleCV = `John Doe
john@example.com

Summary
Seasoned web developer with a focus on maintainable systems.

Experience
Acme Corp, Senior Developer
- Built REST API services in Go
- Led migration to PostgreSQL

Skills
- Go
- SQL
- Docker
`

func TestExtractKeywords(t *testing.T) {
	jd := "We need a backend developer with Go, PostgreSQL and Docker experience. CI/CD a plus."

	got := ExtractKeywords(jd)
	for _, want := range []string{"postgresql", "backend", "ci/cd", "go", "docker"} {
		found := false
		for _, kw := range got {
			if kw == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("keyword %q not extracted from %q (got %v)", want, jd, got)
		}
	}
}

func TestExtractKeywordsWordBoundary(t *testing.T) {
	for _, kw := range ExtractKeywords("Experience with Google Cloud required.") {
		if kw == "go" {
			t.Fatalf("'go' must not match inside 'google'")
		}
	}
}

func TestParseSections(t *testing.T) {
	doc := Parse(sampleCV)

	if !strings.Contains(doc.Summary, "Seasoned web developer") {
		t.Fatalf("summary not parsed: %q", doc.Summary)
	}
	if len(doc.Experience) != 1 {
		t.Fatalf("expected 1 experience entry, got %d", len(doc.Experience))
	}
	if doc.Experience[0].Heading != "Acme Corp, Senior Developer" {
		t.Fatalf("heading = %q", doc.Experience[0].Heading)
	}
	if len(doc.Experience[0].Bullets) != 2 {
		t.Fatalf("expected 2 bullets, got %d", len(doc.Experience[0].Bullets))
	}
	if len(doc.Skills) != 3 {
		t.Fatalf("expected 3 skills, got %d: %v", len(doc.Skills), doc.Skills)
	}
	if len(doc.Other) == 0 || doc.Other[0] != "John Doe" {
		t.Fatalf("preamble not preserved: %v", doc.Other)
	}
}

func TestRewriteMatchesAndLevels(t *testing.T) {
	doc := Parse(sampleCV)
	jd := "Backend developer role: Go, PostgreSQL, Kubernetes."

	result := Rewrite(doc, jd)

	foundGo := false
	for _, s := range result.Matches.Skills {
		if s == "Go" {
			foundGo = true
		}
	}
	if !foundGo {
		t.Fatalf("Go should match, got %v", result.Matches.Skills)
	}

	// Matching skills get a level; non-matching ones stay bare.
	for _, skill := range result.Rewritten.Skills {
		if skill.Name == "Go" && skill.Level != "Advanced" {
			t.Fatalf("matched skill Go missing level: %+v", skill)
		}
		if skill.Name == "Docker" && skill.Level != "" {
			t.Fatalf("unmatched skill Docker should stay bare: %+v", skill)
		}
	}

	// The input document must stay untouched.
	for _, skill := range doc.Skills {
		if skill.Level != "" {
			t.Fatalf("input mutated: %+v", skill)
		}
	}
}

func TestRewriteEmphasizesBullets(t *testing.T) {
	doc := Parse(sampleCV)

	result := Rewrite(doc, "Looking for PostgreSQL expertise.")

	emphasized := false
	for _, bullet := range result.Rewritten.Experience[0].Bullets {
		if strings.Contains(bullet, "(key skill for this role)") {
			emphasized = true
		}
	}
	if !emphasized {
		t.Fatalf("no bullet emphasized: %v", result.Rewritten.Experience[0].Bullets)
	}
}

func TestRewriteImprovements(t *testing.T) {
	doc := Parse(sampleCV)

	result := Rewrite(doc, "Kubernetes and Terraform required.")

	var missing, quantify bool
	for _, imp := range result.Improvements {
		if strings.Contains(imp, "kubernetes") && strings.Contains(imp, "terraform") {
			missing = true
		}
		if strings.Contains(imp, "quantifiable achievements") {
			quantify = true
		}
	}
	if !missing {
		t.Fatalf("missing-skills suggestion absent: %v", result.Improvements)
	}
	if !quantify {
		t.Fatalf("quantifiable-achievements suggestion absent: %v", result.Improvements)
	}
}

func TestRewriteEmptySummary(t *testing.T) {
	result := Rewrite(Document{}, "React frontend role.")
	if !strings.Contains(result.Rewritten.Summary, "Experienced professional") {
		t.Fatalf("summary not generated: %q", result.Rewritten.Summary)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	doc := Parse(sampleCV)
	again := Parse(doc.Render())

	if again.Summary != doc.Summary {
		t.Fatalf("summary changed across round trip: %q vs %q", again.Summary, doc.Summary)
	}
	if len(again.Skills) != len(doc.Skills) {
		t.Fatalf("skills changed across round trip: %v vs %v", again.Skills, doc.Skills)
	}
	if len(again.Experience) != len(doc.Experience) {
		t.Fatalf("experience changed across round trip")
	}
}
