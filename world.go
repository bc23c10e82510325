package popsimgo

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// acceptanceWarnThreshold triggers a warning when a world was built with
// a low module acceptance rate.
const acceptanceWarnThreshold = 0.5

// WorldModuleRef points at one attribute module of a world.
type WorldModuleRef struct {
	ID            string `json:"id"`
	Path          string `json:"path"`
	Category      string `json:"category"`
	DeclaredCount int    `json:"declaredCount"`
}

// WorldDiseaseRef points at one disease module of a world.
type WorldDiseaseRef struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// WorldAcceptance records how many synthesized modules survived the
// world builder's screening.
type WorldAcceptance struct {
	AttributesAccepted  int `json:"attributesAccepted"`
	AttributesAttempted int `json:"attributesAttempted"`
	DiseasesAccepted    int `json:"diseasesAccepted"`
	DiseasesAttempted   int `json:"diseasesAttempted"`
}

// WorldManifest is the top-level description of a built world. It is
// consumed read-only.
type WorldManifest struct {
	Version              int               `json:"version"`
	Seed                 uint32            `json:"seed"`
	Model                string            `json:"model"`
	Categories           []string          `json:"categories"`
	AttributeModules     []WorldModuleRef  `json:"attributeModules"`
	DiseaseModules       []WorldDiseaseRef `json:"diseaseModules"`
	AttributeCatalogPath string            `json:"attributeCatalogPath,omitempty"`
	Acceptance           WorldAcceptance   `json:"acceptance"`
}

// LoadWorldManifest reads a world manifest JSON file.
func LoadWorldManifest(path string) (*WorldManifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read world manifest %s", path)
	}
	w := new(WorldManifest)
	if err := json.Unmarshal(b, w); err != nil {
		return nil, errors.Wrapf(err, "cannot parse world manifest %s", path)
	}
	return w, nil
}

// Validate checks the manifest for the fields a simulation depends on.
func (w *WorldManifest) Validate() error {
	if w.Version <= 0 {
		return errors.Errorf(InvalidIntParameterError, "version", w.Version, "must be positive")
	}
	if w.Model == "" {
		return errors.Errorf(InvalidStringParameterError, "model", w.Model, "must not be empty")
	}
	seen := make(map[string]bool)
	for _, ref := range w.AttributeModules {
		if ref.ID == "" {
			return errors.Errorf(InvalidStringParameterError, "attribute module id", ref.ID, "must not be empty")
		}
		if seen[ref.ID] {
			return errors.Errorf(StringKeyExists, ref.ID)
		}
		seen[ref.ID] = true
	}
	for _, ref := range w.DiseaseModules {
		if ref.ID == "" {
			return errors.Errorf(InvalidStringParameterError, "disease module id", ref.ID, "must not be empty")
		}
		if seen[ref.ID] {
			return errors.Errorf(StringKeyExists, ref.ID)
		}
		seen[ref.ID] = true
	}
	return nil
}

// LoadCatalog loads the attribute catalog the manifest points at, or nil
// when the manifest declares none.
func (w *WorldManifest) LoadCatalog() (*AttributeCatalog, error) {
	if w.AttributeCatalogPath == "" {
		return nil, nil
	}
	return LoadAttributeCatalog(w.AttributeCatalogPath)
}

// WarnLowAcceptance logs a warning for each module family whose builder
// acceptance rate fell below the threshold.
func (w *WorldManifest) WarnLowAcceptance(log zerolog.Logger) {
	warn := func(kind string, accepted, attempted int) {
		if attempted == 0 {
			return
		}
		rate := float64(accepted) / float64(attempted)
		if rate < acceptanceWarnThreshold {
			log.Warn().
				Str("kind", kind).
				Int("accepted", accepted).
				Int("attempted", attempted).
				Msg("world was built with a low module acceptance rate")
		}
	}
	warn("attribute", w.Acceptance.AttributesAccepted, w.Acceptance.AttributesAttempted)
	warn("disease", w.Acceptance.DiseasesAccepted, w.Acceptance.DiseasesAttempted)
}
