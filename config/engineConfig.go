package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"civiclens-be/engine"
	"civiclens-be/models"
)

// EngineConfig builds the engine's deployment configuration from
// environment variables so main stays lean. Quorum thresholds and the
// department routing table are configuration, never hard-coded.
type EngineConfig struct {
	Addr        string
	Quorum      engine.QuorumConfig
	Departments []models.Department
}

// defaultDepartments covers every category; order is routing priority.
var defaultDepartments = []models.Department{
	{Name: "Public Works", Categories: []models.IssueCategory{models.Street, models.Other}},
	{Name: "Water Board", Categories: []models.IssueCategory{models.Water}},
	{Name: "Power Authority", Categories: []models.IssueCategory{models.Electricity}},
	{Name: "Sanitation", Categories: []models.IssueCategory{models.Sanitation}},
}

// EngineFromEnv reads QUORUM_MIN_VOTES, QUORUM_MIN_MARGIN, DEPARTMENTS and
// PORT. DEPARTMENTS is a comma list of "Name:Cat1|Cat2" entries whose order
// fixes routing priority.
func EngineFromEnv() EngineConfig {
	cfg := EngineConfig{
		Addr:        ":8080",
		Quorum:      engine.QuorumConfig{MinVotes: 3, MinMargin: 2},
		Departments: defaultDepartments,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if v := os.Getenv("QUORUM_MIN_VOTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Quorum.MinVotes = n
		} else {
			log.Printf("ignoring invalid QUORUM_MIN_VOTES %q", v)
		}
	}
	if v := os.Getenv("QUORUM_MIN_MARGIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Quorum.MinMargin = n
		} else {
			log.Printf("ignoring invalid QUORUM_MIN_MARGIN %q", v)
		}
	}
	if v := os.Getenv("DEPARTMENTS"); v != "" {
		if departments := parseDepartments(v); len(departments) > 0 {
			cfg.Departments = departments
		}
	}
	return cfg
}

func parseDepartments(raw string) []models.Department {
	var out []models.Department
	for _, entry := range strings.Split(raw, ",") {
		name, cats, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || name == "" {
			log.Printf("ignoring malformed DEPARTMENTS entry %q", entry)
			continue
		}
		department := models.Department{Name: strings.TrimSpace(name)}
		for _, cat := range strings.Split(cats, "|") {
			category := models.IssueCategory(strings.TrimSpace(cat))
			if !models.ValidCategory(category) {
				log.Printf("ignoring unknown category %q for department %q", cat, name)
				continue
			}
			department.Categories = append(department.Categories, category)
		}
		out = append(out, department)
	}
	return out
}
