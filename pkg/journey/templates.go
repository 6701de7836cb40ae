package journey

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk YAML layout.
type templateFile struct {
	Journeys []Template `yaml:"journeys"`
}

// LoadTemplateFile reads journey templates from a YAML file. Every template
// needs a type and at least one named stage; types must be unique and stage
// conditions must use known operators.
func LoadTemplateFile(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateFileInvalid, path, err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateFileInvalid, path, err)
	}

	seen := make(map[string]struct{}, len(file.Journeys))
	for i, tpl := range file.Journeys {
		if tpl.Type == "" {
			return nil, fmt.Errorf("%w: journey %d has no type", ErrTemplateFileInvalid, i)
		}
		if _, dup := seen[tpl.Type]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, tpl.Type)
		}
		seen[tpl.Type] = struct{}{}

		if len(tpl.Stages) == 0 {
			return nil, fmt.Errorf("%w: journey %q has no stages", ErrTemplateFileInvalid, tpl.Type)
		}
		for j, stage := range tpl.Stages {
			if stage.Name == "" {
				return nil, fmt.Errorf("%w: journey %q stage %d has no name", ErrTemplateFileInvalid, tpl.Type, j)
			}
			if err := stage.Conditions.Validate(); err != nil {
				return nil, fmt.Errorf("%w: journey %q stage %q: %v", ErrTemplateFileInvalid, tpl.Type, stage.Name, err)
			}
		}
	}

	return file.Journeys, nil
}
