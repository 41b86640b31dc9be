package templates

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const problemsFile = "problems.yaml"

// Problem is one entry of the built-in problem catalogue.
type Problem struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Statement string `yaml:"statement"`
}

type catalogue struct {
	Problems []Problem `yaml:"problems"`
}

//nolint:gochecknoglobals // lazily loaded registry
var (
	registryOnce sync.Once
	registry     []Problem
	registryErr  error
)

func loadRegistry() ([]Problem, error) {
	registryOnce.Do(func() {
		data, err := templateFS.ReadFile(problemsFile)
		if err != nil {
			registryErr = fmt.Errorf("failed to read %s: %w", problemsFile, err)
			return
		}
		var c catalogue
		if err := yaml.Unmarshal(data, &c); err != nil {
			registryErr = fmt.Errorf("failed to parse %s: %w", problemsFile, err)
			return
		}
		for i := range c.Problems {
			if err := validateProblem(&c.Problems[i]); err != nil {
				registryErr = fmt.Errorf("%s entry %d: %w", problemsFile, i, err)
				return
			}
			c.Problems[i].Statement = strings.TrimSpace(c.Problems[i].Statement)
		}
		if len(c.Problems) == 0 {
			registryErr = fmt.Errorf("%s contains no problems", problemsFile)
			return
		}
		registry = c.Problems
	})
	return registry, registryErr
}

func validateProblem(p *Problem) error {
	if p.ID == "" {
		return fmt.Errorf("missing id")
	}
	if strings.TrimSpace(p.Statement) == "" {
		return fmt.Errorf("problem %s has an empty statement", p.ID)
	}
	return nil
}

// DefaultProblem returns the first catalogue entry (IMO 2011 Problem 2).
func DefaultProblem() (Problem, error) {
	problems, err := loadRegistry()
	if err != nil {
		return Problem{}, err
	}
	return problems[0], nil
}

// LoadProblem returns the catalogue entry with the given id.
func LoadProblem(id string) (Problem, error) {
	problems, err := loadRegistry()
	if err != nil {
		return Problem{}, err
	}
	idx := slices.IndexFunc(problems, func(p Problem) bool { return p.ID == id })
	if idx < 0 {
		return Problem{}, fmt.Errorf("unknown problem %q (available: %s)", id, strings.Join(ListProblemIDs(), ", "))
	}
	return problems[idx], nil
}

// ListProblemIDs returns the catalogue ids in file order.
func ListProblemIDs() []string {
	problems, err := loadRegistry()
	if err != nil {
		return nil
	}
	ids := make([]string, len(problems))
	for i := range problems {
		ids[i] = problems[i].ID
	}
	return ids
}
