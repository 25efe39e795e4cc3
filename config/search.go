package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AssetAliases beschreibt ein beobachtetes Asset mit allen suchbaren Aliassen
// (Handelsname, Generikum, Entwicklungscode) und optionalen Protein-Targets.
type AssetAliases struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Targets []string `yaml:"targets"`
}

// OrQuery baut einen OR-Suchstring aus allen Aliassen. Mehrwort-Aliasse
// werden in Anführungszeichen gesetzt.
func (a AssetAliases) OrQuery() string {
	return orQuery(a.Aliases)
}

// TargetOrQuery baut einen OR-Suchstring aus den Target-Aliassen.
func (a AssetAliases) TargetOrQuery() string {
	return orQuery(a.Targets)
}

// DiseaseAliases beschreibt eine beobachtete Erkrankung mit Such-Aliassen.
type DiseaseAliases struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// OrQuery baut einen OR-Suchstring aus allen Aliassen.
func (d DiseaseAliases) OrQuery() string {
	return orQuery(d.Aliases)
}

// SearchConfig ist die vollständige Suchkonfiguration aus search_config.yaml.
type SearchConfig struct {
	Assets                []AssetAliases   `yaml:"assets"`
	Diseases              []DiseaseAliases `yaml:"diseases"`
	InterventionKeywords  []string         `yaml:"intervention_keywords"`
	NewsDiscoveryKeywords []string         `yaml:"news_discovery_keywords"`
}

// AssetByName liefert die Alias-Konfiguration für ein Asset oder nil.
func (s *SearchConfig) AssetByName(name string) *AssetAliases {
	for i := range s.Assets {
		if strings.EqualFold(s.Assets[i].Name, name) {
			return &s.Assets[i]
		}
	}
	return nil
}

// InterventionOrQuery baut einen OR-Suchstring aus den Interventions-Keywords.
func (s *SearchConfig) InterventionOrQuery() string {
	return orQuery(s.InterventionKeywords)
}

// orQuery setzt Mehrwort-Terme in Anführungszeichen und verknüpft mit OR.
func orQuery(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if strings.Contains(t, " ") {
			parts = append(parts, `"`+t+`"`)
		} else {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " OR ")
}

// LoadSearchConfig lädt die Suchkonfiguration aus einer YAML-Datei.
func LoadSearchConfig(path string) (*SearchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("search config lesen: %w", err)
	}
	var sc SearchConfig
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("search config parsen: %w", err)
	}
	return &sc, nil
}
