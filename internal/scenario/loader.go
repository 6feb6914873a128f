// Package scenario loads scenario definitions and company profiles from YAML.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/corpus-generator/internal/model"
)

// ErrInvalid marks a definition file that parsed but cannot be used.
var ErrInvalid = errors.New("invalid scenario definition")

// Set is the loaded content of a definition file.
type Set struct {
	Companies []model.Company
	Directory *model.Directory
	Scenarios []*model.Scenario
}

type yamlFile struct {
	CompanyProfiles []model.Company `yaml:"company_profiles"`
	Scenarios       []yamlScenario  `yaml:"scenarios"`
}

type yamlLLMSettings struct {
	Temperature *float64 `yaml:"temperature"`
}

type yamlScenario struct {
	Type                     string                `yaml:"type"`
	BaseFilename             string                `yaml:"base_filename"`
	Description              string                `yaml:"description"`
	Prompts                  []yamlPrompt          `yaml:"prompts"`
	PromptVariables          map[string]stringList `yaml:"prompt_variables"`
	NearDuplicateProbability float64               `yaml:"near_duplicate_probability"`
	LLMSettings              *yamlLLMSettings      `yaml:"llm_settings"`
}

// yamlPrompt is either a bare template string or a mapping with an
// optional probability and one or more templates.
type yamlPrompt struct {
	Probability *float64
	Templates   []string
}

func (p *yamlPrompt) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		p.Templates = []string{s}
		return nil
	case yaml.MappingNode:
		var raw struct {
			Probability     *float64   `yaml:"probability"`
			PromptTemplates stringList `yaml:"prompt_templates"`
			Prompt          string     `yaml:"prompt"`
		}
		if err := n.Decode(&raw); err != nil {
			return err
		}
		p.Probability = raw.Probability
		p.Templates = raw.PromptTemplates
		if raw.Prompt != "" {
			p.Templates = append(p.Templates, raw.Prompt)
		}
		return nil
	}
	return fmt.Errorf("line %d: prompt must be a string or a mapping", n.Line)
}

// stringList accepts a single scalar where a list is expected.
type stringList []string

func (l *stringList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		*l = []string{s}
		return nil
	}
	var out []string
	if err := n.Decode(&out); err != nil {
		return err
	}
	*l = out
	return nil
}

// Load reads and parses the definition file at path.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return set, nil
}

// Parse decodes definitions and builds immutable scenarios.
func Parse(data []byte) (*Set, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("%w: no scenarios defined", ErrInvalid)
	}

	set := &Set{
		Companies: f.CompanyProfiles,
		Directory: model.NewDirectory(f.CompanyProfiles),
	}
	ids := make(map[string]int)
	for i, ys := range f.Scenarios {
		sc, err := ys.build()
		if err != nil {
			return nil, fmt.Errorf("scenario %d (%s): %w", i+1, ys.BaseFilename, err)
		}
		ids[sc.BaseName]++
		sc.ID = sc.BaseName
		if n := ids[sc.BaseName]; n > 1 {
			sc.ID = fmt.Sprintf("%s_%d", sc.BaseName, n)
		}
		set.Scenarios = append(set.Scenarios, sc)
	}
	return set, nil
}

func (ys yamlScenario) build() (*model.Scenario, error) {
	kind := model.ScenarioKind(strings.TrimSpace(ys.Type))
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalid, ys.Type)
	}
	base := strings.TrimSpace(ys.BaseFilename)
	if base == "" {
		return nil, fmt.Errorf("%w: base_filename is required", ErrInvalid)
	}
	if len(ys.Prompts) == 0 {
		return nil, fmt.Errorf("%w: at least one prompt is required", ErrInvalid)
	}
	if ys.NearDuplicateProbability < 0 || ys.NearDuplicateProbability > 1 {
		return nil, fmt.Errorf("%w: near_duplicate_probability must be within [0, 1]", ErrInvalid)
	}

	sc := &model.Scenario{
		Kind:                     kind,
		BaseName:                 base,
		Description:              ys.Description,
		NearDuplicateProbability: ys.NearDuplicateProbability,
		Noise:                    strings.Contains(strings.ToLower(base), "noise"),
		Tags:                     model.TagsOf(ys.Description),
	}
	if ys.LLMSettings != nil && ys.LLMSettings.Temperature != nil {
		t := *ys.LLMSettings.Temperature
		sc.Temperature = &t
	}
	for j, p := range ys.Prompts {
		if len(p.Templates) == 0 {
			return nil, fmt.Errorf("%w: prompt %d has no template", ErrInvalid, j+1)
		}
		step := model.PromptStep{Probability: 1, Templates: append([]string(nil), p.Templates...)}
		if p.Probability != nil {
			step.Probability = *p.Probability
		}
		sc.Prompts = append(sc.Prompts, step)
	}
	if len(ys.PromptVariables) > 0 {
		sc.Variables = make(map[string][]string, len(ys.PromptVariables))
		for k, v := range ys.PromptVariables {
			sc.Variables[k] = append([]string(nil), v...)
		}
	}
	return sc, nil
}
