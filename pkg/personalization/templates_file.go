package personalization

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk YAML layout.
type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadTemplateFile reads notification templates from a YAML file. Every
// template needs a slug and a channel; slugs must be unique.
func LoadTemplateFile(path string) (StaticTemplates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateFileInvalid, path, err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateFileInvalid, path, err)
	}

	seen := make(map[string]struct{}, len(file.Templates))
	for i, tpl := range file.Templates {
		if tpl.Slug == "" {
			return nil, fmt.Errorf("%w: template %d has no slug", ErrTemplateFileInvalid, i)
		}
		if _, dup := seen[tpl.Slug]; dup {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrTemplateFileInvalid, tpl.Slug)
		}
		seen[tpl.Slug] = struct{}{}

		if tpl.Channel == "" {
			return nil, fmt.Errorf("%w: template %q has no channel", ErrTemplateFileInvalid, tpl.Slug)
		}
	}

	return StaticTemplates(file.Templates), nil
}

// DefaultPreferenceSource is a PreferenceSource that answers
// DefaultPreferences for every user. Suitable for deployments without a
// preference store.
type DefaultPreferenceSource struct{}

func (DefaultPreferenceSource) GetUserPreferences(ctx context.Context, userID string) (Preferences, error) {
	return DefaultPreferences(userID), nil
}
