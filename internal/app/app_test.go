package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/deskmate/internal/config"
)

func TestCloseOnEmptyApp(t *testing.T) {
	a := &App{}
	assert.NoError(t, a.Close(), "Close must be safe on a partially built App")
}

func TestQualifiedModelName(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{config.ProviderGemini, "googleai/gemini-2.5-flash"},
		{config.ProviderOllama, "ollama/gemini-2.5-flash"},
		{config.ProviderOpenAI, "openai/gemini-2.5-flash"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := &config.Config{Provider: tt.provider, ModelName: "gemini-2.5-flash"}
			assert.Equal(t, tt.want, qualifiedModelName(cfg))
		})
	}
}

func TestProvideDepartments(t *testing.T) {
	cfg := &config.Config{Departments: config.DefaultDepartments()}

	set, err := provideDepartments(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	cfg.Departments = append(cfg.Departments, config.DepartmentProfile{Name: "General Inquiry"})
	_, err = provideDepartments(cfg)
	assert.Error(t, err, "the fallback label must not be configurable as a department")
}
