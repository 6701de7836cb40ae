package trigger

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticRuleSource is a RuleSource over a fixed slice. Suitable for
// configuration-file driven deployments and tests.
type StaticRuleSource []Rule

func (s StaticRuleSource) ListRules(ctx context.Context) ([]Rule, error) {
	out := make([]Rule, len(s))
	copy(out, s)
	return out, nil
}

// ruleFile is the on-disk YAML layout.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRuleFile reads trigger rules from a YAML file. Rules missing a slug or
// event name, or carrying an unknown condition operator or logic flag, are
// rejected so a typo cannot silently drop or mute a rule.
func LoadRuleFile(path string) (StaticRuleSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRuleFileInvalid, path, err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRuleFileInvalid, path, err)
	}

	for i, rule := range file.Rules {
		if rule.Slug == "" {
			return nil, fmt.Errorf("%w: rule %d has no slug", ErrRuleFileInvalid, i)
		}
		if rule.Event == "" {
			return nil, fmt.Errorf("%w: rule %q has no event", ErrRuleFileInvalid, rule.Slug)
		}
		if err := rule.Conditions.Validate(); err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", ErrRuleFileInvalid, rule.Slug, err)
		}
	}

	return StaticRuleSource(file.Rules), nil
}
