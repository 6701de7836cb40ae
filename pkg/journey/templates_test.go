package journey_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/journey"
)

func writeTemplateFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journeys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTemplateFile(t *testing.T) {
	t.Parallel()

	t.Run("full template", func(t *testing.T) {
		t.Parallel()

		path := writeTemplateFile(t, `
journeys:
  - id: onboarding-v1
    type: onboarding
    active: true
    completion_events: [onboarding_complete]
    stages:
      - name: welcome
        triggers: [journey_welcome]
        delay_minutes: 10
      - name: upsell
        triggers: [journey_upsell]
        delay_minutes: 30
        conditions:
          logic: AND
          rules:
            - field: premium.is_premium
              operator: equals
              value: true
`)

		templates, err := journey.LoadTemplateFile(path)
		require.NoError(t, err)
		require.Len(t, templates, 1)

		tpl := templates[0]
		assert.Equal(t, "onboarding", tpl.Type)
		assert.True(t, tpl.Active)
		assert.Equal(t, []string{"onboarding_complete"}, tpl.CompletionEvents)
		require.Len(t, tpl.Stages, 2)
		assert.Equal(t, "welcome", tpl.Stages[0].Name)
		assert.Equal(t, 10, tpl.Stages[0].DelayMinutes)
		require.Len(t, tpl.Stages[1].Conditions.Rules, 1)
	})

	t.Run("missing type", func(t *testing.T) {
		t.Parallel()

		path := writeTemplateFile(t, "journeys:\n  - id: x\n    stages:\n      - name: s1\n")
		_, err := journey.LoadTemplateFile(path)
		assert.ErrorIs(t, err, journey.ErrTemplateFileInvalid)
	})

	t.Run("duplicate type", func(t *testing.T) {
		t.Parallel()

		path := writeTemplateFile(t, `
journeys:
  - type: onboarding
    stages: [{name: s1}]
  - type: onboarding
    stages: [{name: s1}]
`)
		_, err := journey.LoadTemplateFile(path)
		assert.ErrorIs(t, err, journey.ErrDuplicateType)
	})

	t.Run("no stages", func(t *testing.T) {
		t.Parallel()

		path := writeTemplateFile(t, "journeys:\n  - type: onboarding\n")
		_, err := journey.LoadTemplateFile(path)
		assert.ErrorIs(t, err, journey.ErrTemplateFileInvalid)
	})

	t.Run("unnamed stage", func(t *testing.T) {
		t.Parallel()

		path := writeTemplateFile(t, "journeys:\n  - type: onboarding\n    stages:\n      - delay_minutes: 5\n")
		_, err := journey.LoadTemplateFile(path)
		assert.ErrorIs(t, err, journey.ErrTemplateFileInvalid)
	})

	t.Run("unknown stage condition operator", func(t *testing.T) {
		t.Parallel()

		path := writeTemplateFile(t, `
journeys:
  - type: onboarding
    stages:
      - name: upsell
        conditions:
          rules:
            - field: premium.is_premium
              operator: is_truthy
`)
		_, err := journey.LoadTemplateFile(path)
		require.ErrorIs(t, err, journey.ErrTemplateFileInvalid)
		assert.ErrorContains(t, err, "is_truthy")
	})
}
