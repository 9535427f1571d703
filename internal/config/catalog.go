package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds the domain vocabularies the pipeline iterates over. Every
// list has a built-in default; a YAML file may override any of them.
type Catalog struct {
	PlayTypes        []string `yaml:"play_types"`
	TerminalStatuses []string `yaml:"terminal_statuses"`
	HustleKeywords   []string `yaml:"hustle_keywords"`
}

// DefaultCatalog returns the built-in vocabularies.
func DefaultCatalog() *Catalog {
	return &Catalog{
		PlayTypes: []string{
			"Iso",
			"PostUp",
			"PandRBallHandler",
			"PandRRollMan",
			"Cut",
			"Transition",
			"SpotUp",
			"OffensiveRebound",
			"NoPlayType",
			"OffScreen",
			"HandOff",
		},
		TerminalStatuses: []string{"closed", "complete", "final"},
		HustleKeywords: []string{
			"offensive rebound",
			"off. rebound",
			"oreb",
			"steal",
			"block",
			"charge",
			"loose ball",
			"dive",
		},
	}
}

// LoadCatalog reads an optional YAML catalog. An empty path yields the
// defaults; lists missing from the file keep their default values.
func LoadCatalog(path string) (*Catalog, error) {
	catalog := DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Field: "CATALOG_FILE", Reason: fmt.Sprintf("cannot be read: %v", err)}
	}

	var override Catalog
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, &ConfigurationError{Field: "CATALOG_FILE", Reason: fmt.Sprintf("is not valid YAML: %v", err)}
	}

	if len(override.PlayTypes) > 0 {
		catalog.PlayTypes = override.PlayTypes
	}
	if len(override.TerminalStatuses) > 0 {
		catalog.TerminalStatuses = override.TerminalStatuses
	}
	if len(override.HustleKeywords) > 0 {
		catalog.HustleKeywords = override.HustleKeywords
	}

	return catalog, nil
}

// IsTerminal reports whether a game status is terminal, case-insensitively.
func (c *Catalog) IsTerminal(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	for _, t := range c.TerminalStatuses {
		if s == strings.ToLower(t) {
			return true
		}
	}
	return false
}
