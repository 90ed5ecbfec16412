package department

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet(t *testing.T) {
	tests := []struct {
		name     string
		profiles []Profile
		wantErr  bool
	}{
		{
			name: "valid departments",
			profiles: []Profile{
				{Name: "HR", Description: "Human Resources", Keywords: []string{"payroll"}},
				{Name: "IT", Description: "Information Technology", Keywords: []string{"vpn"}},
			},
			wantErr: false,
		},
		{
			name:     "empty set rejected",
			profiles: nil,
			wantErr:  true,
		},
		{
			name: "duplicate name rejected",
			profiles: []Profile{
				{Name: "HR", Description: "a"},
				{Name: "HR", Description: "b"},
			},
			wantErr: true,
		},
		{
			name: "empty name rejected",
			profiles: []Profile{
				{Name: "", Description: "a"},
			},
			wantErr: true,
		},
		{
			name: "general fallback cannot be configured",
			profiles: []Profile{
				{Name: "general inquiry", Description: "catch-all"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSet(tt.profiles)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.profiles), s.Len())
		})
	}
}

func TestSet_Lookup(t *testing.T) {
	s, err := NewSet([]Profile{
		{Name: "HR", Description: "Human Resources"},
		{Name: "Security", Description: "Physical security"},
	})
	require.NoError(t, err)

	p, ok := s.Lookup("HR")
	require.True(t, ok)
	assert.Equal(t, Department("HR"), p.Name)

	// Case-insensitive match for labels from external stores.
	p, ok = s.Lookup("security")
	require.True(t, ok)
	assert.Equal(t, Department("Security"), p.Name)

	_, ok = s.Lookup("Finance")
	assert.False(t, ok)

	_, ok = s.Lookup(General)
	assert.False(t, ok, "General has no profile")
}

func TestDepartment_IsGeneral(t *testing.T) {
	assert.True(t, General.IsGeneral())
	assert.True(t, Department("general inquiry").IsGeneral())
	assert.False(t, Department("HR").IsGeneral())
}

func TestSet_Names(t *testing.T) {
	s, err := NewSet([]Profile{
		{Name: "HR"}, {Name: "IT"}, {Name: "Security"},
	})
	require.NoError(t, err)

	assert.Equal(t, []Department{"HR", "IT", "Security"}, s.Names())
}
