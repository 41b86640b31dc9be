package templates

import (
	"strings"
	"testing"
)

func TestNewRenderer(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}

	data := &TemplateData{
		Problem:  "Prove that 1 + 1 = 2.",
		Artifact: "By definition.",
		Critique: "- Justification Gap: which definition?",
	}
	for _, name := range AllTemplates {
		out, err := renderer.Render(name, data)
		if err != nil {
			t.Errorf("Failed to render template %s: %v", name, err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("Template %s rendered empty", name)
		}
		if strings.Contains(out, "{{") {
			t.Errorf("Template %s left unreplaced placeholders", name)
		}
	}
}

func TestUserTemplatesIncludeState(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	data := &TemplateData{Problem: "PROBLEM-TEXT", Artifact: "ARTIFACT-TEXT", Critique: "CRITIQUE-TEXT"}

	tests := []struct {
		name     PromptTemplate
		contains []string
		excludes []string
	}{
		{GenerateUserTemplate, []string{"PROBLEM-TEXT"}, []string{"ARTIFACT-TEXT", "CRITIQUE-TEXT"}},
		{RefineUserTemplate, []string{"PROBLEM-TEXT", "ARTIFACT-TEXT"}, []string{"CRITIQUE-TEXT"}},
		{VerifyUserTemplate, []string{"PROBLEM-TEXT", "ARTIFACT-TEXT"}, []string{"CRITIQUE-TEXT"}},
		{CorrectUserTemplate, []string{"PROBLEM-TEXT", "ARTIFACT-TEXT", "CRITIQUE-TEXT"}, nil},
	}
	for _, tt := range tests {
		out, err := renderer.Render(tt.name, data)
		if err != nil {
			t.Fatalf("render %s: %v", tt.name, err)
		}
		for _, s := range tt.contains {
			if !strings.Contains(out, s) {
				t.Errorf("%s should contain %q", tt.name, s)
			}
		}
		for _, s := range tt.excludes {
			if strings.Contains(out, s) {
				t.Errorf("%s should not contain %q", tt.name, s)
			}
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := renderer.Render("nope.tpl.md", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestDefaultProblem(t *testing.T) {
	p, err := DefaultProblem()
	if err != nil {
		t.Fatalf("DefaultProblem: %v", err)
	}
	if p.ID != "imo-2011-p2" {
		t.Errorf("default id = %q", p.ID)
	}
	if !strings.Contains(p.Statement, "windmill") {
		t.Error("default problem should be the windmill problem")
	}
	if strings.HasSuffix(p.Statement, "\n") {
		t.Error("statement should be trimmed")
	}
}

func TestLoadProblem(t *testing.T) {
	ids := ListProblemIDs()
	if len(ids) < 2 {
		t.Fatalf("expected several problems, got %v", ids)
	}
	for _, id := range ids {
		p, err := LoadProblem(id)
		if err != nil {
			t.Errorf("LoadProblem(%s): %v", id, err)
		}
		if p.Title == "" {
			t.Errorf("problem %s has no title", id)
		}
	}
	if _, err := LoadProblem("does-not-exist"); err == nil {
		t.Error("expected error for unknown id")
	}
}
