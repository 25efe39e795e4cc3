package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrQueryQuotesMultiWordTerms(t *testing.T) {
	a := AssetAliases{
		Name:    "Zolbetuximab (Vyloy)",
		Aliases: []string{"Zolbetuximab", "Vyloy", "IMAB362"},
		Targets: []string{"CLDN18.2", "Claudin 18.2"},
	}
	assert.Equal(t, "Zolbetuximab OR Vyloy OR IMAB362", a.OrQuery())
	assert.Equal(t, `CLDN18.2 OR "Claudin 18.2"`, a.TargetOrQuery())

	d := DiseaseAliases{Name: "Gastric Cancer", Aliases: []string{"gastric cancer", "stomach cancer"}}
	assert.Equal(t, `"gastric cancer" OR "stomach cancer"`, d.OrQuery())
}

func TestOrQueryEmpty(t *testing.T) {
	assert.Equal(t, "", AssetAliases{}.OrQuery())
	assert.Equal(t, "", AssetAliases{}.TargetOrQuery())
}

func TestLoadSearchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assets:
  - name: "Gilteritinib (Xospata)"
    aliases:
      - Gilteritinib
      - Xospata
    targets:
      - FLT3
diseases:
  - name: "Acute Myeloid Leukemia"
    aliases:
      - "acute myeloid leukemia"
      - AML
intervention_keywords:
  - inhibitor
  - "clinical trial"
news_discovery_keywords:
  - "FDA approval"
`), 0o644))

	sc, err := LoadSearchConfig(path)
	require.NoError(t, err)
	require.Len(t, sc.Assets, 1)
	require.Len(t, sc.Diseases, 1)
	assert.Equal(t, `inhibitor OR "clinical trial"`, sc.InterventionOrQuery())

	// Lookup ist case-insensitive
	asset := sc.AssetByName("gilteritinib (xospata)")
	require.NotNil(t, asset)
	assert.Equal(t, []string{"Gilteritinib", "Xospata"}, asset.Aliases)
	assert.Nil(t, sc.AssetByName("Unknown"))
}

func TestLoadSearchConfigMissingFile(t *testing.T) {
	_, err := LoadSearchConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadSearchConfigShippedFile(t *testing.T) {
	sc, err := LoadSearchConfig("search_config.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, sc.Assets)
	assert.NotEmpty(t, sc.Diseases)
	for _, a := range sc.Assets {
		assert.NotEmpty(t, a.Aliases, "asset %s braucht mindestens einen Alias", a.Name)
	}
}
