package config

import (
	"testing"

	"civiclens-be/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineFromEnvDefaults(t *testing.T) {
	cfg := EngineFromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 3, cfg.Quorum.MinVotes)
	assert.Equal(t, 2, cfg.Quorum.MinMargin)
	require.NotEmpty(t, cfg.Departments)

	// Every category routes somewhere by default.
	for _, category := range models.Categories {
		routed := false
		for _, department := range cfg.Departments {
			if department.Services(category) {
				routed = true
				break
			}
		}
		assert.True(t, routed, "category %s has no default department", category)
	}
}

func TestEngineFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("QUORUM_MIN_VOTES", "5")
	t.Setenv("QUORUM_MIN_MARGIN", "3")
	t.Setenv("DEPARTMENTS", "Roads:Street, Utilities:Water|Electricity")

	cfg := EngineFromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 5, cfg.Quorum.MinVotes)
	assert.Equal(t, 3, cfg.Quorum.MinMargin)
	require.Len(t, cfg.Departments, 2)
	assert.Equal(t, "Roads", cfg.Departments[0].Name)
	assert.Equal(t, []models.IssueCategory{models.Water, models.Electricity}, cfg.Departments[1].Categories)
}

func TestEngineFromEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("QUORUM_MIN_VOTES", "zero")
	t.Setenv("DEPARTMENTS", "nocolon")

	cfg := EngineFromEnv()
	assert.Equal(t, 3, cfg.Quorum.MinVotes)
	assert.NotEmpty(t, cfg.Departments, "malformed DEPARTMENTS falls back to defaults")
}
