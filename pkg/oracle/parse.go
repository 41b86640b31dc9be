package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errNoJSON        = errors.New("response contains no JSON object")
	errMissingField  = errors.New("required field missing")
	errEmptyResponse = errors.New("empty response")
)

// wire shapes of the structured answers

type generationWire struct {
	Summary struct {
		Verdict      string `json:"verdict"`
		MethodSketch string `json:"method_sketch"`
	} `json:"summary"`
	DetailedSolution struct {
		Proof string `json:"proof"`
	} `json:"detailed_solution"`
}

type critiqueWire struct {
	FinalVerdict string   `json:"final_verdict"`
	Findings     []string `json:"findings"`
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost {...} span.
func extractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", errEmptyResponse
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", errNoJSON
	}
	return s[start : end+1], nil
}

func parseGeneration(text string) (*GenerationResult, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var w generationWire
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("failed to decode generation: %w", err)
	}

	g := &GenerationResult{
		Verdict:          strings.TrimSpace(w.Summary.Verdict),
		MethodSketch:     strings.TrimSpace(w.Summary.MethodSketch),
		DetailedArtifact: strings.TrimSpace(w.DetailedSolution.Proof),
	}
	switch {
	case g.Verdict == "":
		return nil, fmt.Errorf("%w: summary.verdict", errMissingField)
	case g.MethodSketch == "":
		return nil, fmt.Errorf("%w: summary.method_sketch", errMissingField)
	case g.DetailedArtifact == "":
		return nil, fmt.Errorf("%w: detailed_solution.proof", errMissingField)
	}
	return g, nil
}

func parseCritique(text string) (*CritiqueResult, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var w critiqueWire
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("failed to decode critique: %w", err)
	}

	c := &CritiqueResult{
		FinalVerdict: strings.TrimSpace(w.FinalVerdict),
		Findings:     make([]string, 0, len(w.Findings)),
	}
	if c.FinalVerdict == "" {
		return nil, fmt.Errorf("%w: final_verdict", errMissingField)
	}
	for _, f := range w.Findings {
		if f = strings.TrimSpace(f); f != "" {
			c.Findings = append(c.Findings, f)
		}
	}
	return c, nil
}
