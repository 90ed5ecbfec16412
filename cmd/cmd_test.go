package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/deskmate/internal/config"
	"github.com/opsdesk/deskmate/internal/department"
)

func testDepartments(t *testing.T) *department.Set {
	t.Helper()

	defaults := config.DefaultDepartments()
	profiles := make([]department.Profile, 0, len(defaults))
	for _, p := range defaults {
		profiles = append(profiles, department.Profile{
			Name:        department.Department(p.Name),
			Description: p.Description,
			Keywords:    p.Keywords,
		})
	}

	set, err := department.NewSet(profiles)
	require.NoError(t, err)
	return set
}

func TestParseChunks(t *testing.T) {
	set := testDepartments(t)

	input := `[
		{"id": "vpn-1", "content": "VPN setup guide", "department": "IT"},
		{"id": "misc-1", "content": "Office floor plan"}
	]`

	chunks, err := parseChunks(strings.NewReader(input), set)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "vpn-1", chunks[0].ID)
	assert.Equal(t, department.Department("IT"), chunks[0].Department)
	assert.Equal(t, department.General, chunks[1].Department)
}

func TestParseChunksRejectsUnknownDepartment(t *testing.T) {
	set := testDepartments(t)

	input := `[{"id": "x", "content": "text", "department": "Facilities"}]`

	_, err := parseChunks(strings.NewReader(input), set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Facilities")
}

func TestParseChunksRejectsMissingFields(t *testing.T) {
	set := testDepartments(t)

	tests := []struct {
		name  string
		input string
	}{
		{"missing id", `[{"content": "text"}]`},
		{"missing content", `[{"id": "x"}]`},
		{"malformed json", `{"id": "x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseChunks(strings.NewReader(tt.input), set)
			assert.Error(t, err)
		})
	}
}

func TestCheckRequiredEnv(t *testing.T) {
	t.Run("gemini requires key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		err := checkRequiredEnv(&config.Config{Provider: config.ProviderGemini})
		assert.Error(t, err)
	})

	t.Run("gemini with key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "test-key")
		err := checkRequiredEnv(&config.Config{Provider: config.ProviderGemini})
		assert.NoError(t, err)
	})

	t.Run("openai requires key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		err := checkRequiredEnv(&config.Config{Provider: config.ProviderOpenAI})
		assert.Error(t, err)
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		err := checkRequiredEnv(&config.Config{Provider: config.ProviderOllama})
		assert.NoError(t, err)
	})
}
