package popsimgo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sampleManifestJSON = `{
  "version": 1,
  "seed": 42,
  "model": "demo",
  "categories": ["vitals", "labs"],
  "attributeModules": [
    {"id": "body_composition", "path": "modules/body_composition.json", "category": "vitals", "declaredCount": 3}
  ],
  "diseaseModules": [
    {"id": "obesity", "path": "modules/obesity.json", "name": "Obesity"}
  ],
  "acceptance": {
    "attributesAccepted": 8, "attributesAttempted": 10,
    "diseasesAccepted": 4, "diseasesAttempted": 5
  }
}`

const sampleCatalogJSON = `{
  "catalog": [
    {"key": "bmi", "type": "number", "durability": "stateful",
     "limits": {"min": 10, "max": 80}, "category": "vitals"},
    {"key": "sex", "type": "string", "durability": "intrinsic", "category": "demographics"}
  ]
}`

func TestLoadWorldManifest(t *testing.T) {
	path := writeTempFile(t, "world.json", sampleManifestJSON)
	w, err := LoadWorldManifest(path)
	require.NoError(t, err)
	require.NoError(t, w.Validate())
	require.Equal(t, uint32(42), w.Seed)
	require.Equal(t, "demo", w.Model)
	require.Len(t, w.AttributeModules, 1)
	require.Equal(t, "body_composition", w.AttributeModules[0].ID)
	require.Len(t, w.DiseaseModules, 1)
	require.Equal(t, 8, w.Acceptance.AttributesAccepted)
}

func TestLoadWorldManifest_MissingFile(t *testing.T) {
	_, err := LoadWorldManifest(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadWorldManifest_Malformed(t *testing.T) {
	path := writeTempFile(t, "world.json", "{not json")
	_, err := LoadWorldManifest(path)
	require.Error(t, err)
}

func TestWorldManifest_ValidateRejectsDuplicateIDs(t *testing.T) {
	w := &WorldManifest{
		Version: 1,
		Model:   "demo",
		AttributeModules: []WorldModuleRef{
			{ID: "dup"}, {ID: "dup"},
		},
	}
	require.Error(t, w.Validate())
}

func TestWorldManifest_ValidateRejectsMissingModel(t *testing.T) {
	w := &WorldManifest{Version: 1}
	require.Error(t, w.Validate())
}

func TestWorldManifest_WarnLowAcceptance(t *testing.T) {
	w := &WorldManifest{
		Version: 1,
		Model:   "demo",
		Acceptance: WorldAcceptance{
			AttributesAccepted: 1, AttributesAttempted: 10,
			DiseasesAccepted: 5, DiseasesAttempted: 5,
		},
	}
	// Exercises the warning path; the logger is a no-op sink.
	w.WarnLowAcceptance(discardLogger())
}

func TestLoadAttributeCatalog(t *testing.T) {
	path := writeTempFile(t, "catalog.json", sampleCatalogJSON)
	c, err := LoadAttributeCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Catalog, 2)

	clamped := c.Clamp("bmi", Num(5))
	require.Equal(t, 10.0, clamped.Number)
	clamped = c.Clamp("bmi", Num(95))
	require.Equal(t, 80.0, clamped.Number)
	passthrough := c.Clamp("sex", Text("F"))
	require.Equal(t, "F", passthrough.Str)
	undeclared := c.Clamp("unknown", Num(1e9))
	require.Equal(t, 1e9, undeclared.Number)
}
