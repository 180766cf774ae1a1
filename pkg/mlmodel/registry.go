package mlmodel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mimir-aip/cropwise/pkg/features"
	"github.com/mimir-aip/cropwise/pkg/logger"
	"github.com/mimir-aip/cropwise/pkg/mlmodel/forest"
	"github.com/mimir-aip/cropwise/pkg/models"
	"gopkg.in/yaml.v3"
)

// ModelKind selects the backend for a manifest entry
type ModelKind string

const (
	ModelKindForest ModelKind = "forest"
	ModelKindKNN    ModelKind = "knn"
	ModelKindRemote ModelKind = "remote"
)

// ManifestEntry describes one model to load
type ManifestEntry struct {
	Name       string        `yaml:"name"`
	Kind       ModelKind     `yaml:"kind"`
	Artifact   string        `yaml:"artifact,omitempty"`
	Dataset    string        `yaml:"dataset,omitempty"`
	URL        string        `yaml:"url,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	Neighbours int           `yaml:"neighbours,omitempty"`
	Trees      int           `yaml:"trees,omitempty"`
	Seed       int64         `yaml:"seed,omitempty"`
	Required   bool          `yaml:"required,omitempty"`
	Primary    bool          `yaml:"primary,omitempty"`
}

// Manifest lists the models available to the service
type Manifest struct {
	Models []ManifestEntry `yaml:"models"`
}

// Validate checks entries for the fields their kind needs
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Models))
	primaries := 0
	for i, e := range m.Models {
		if e.Name == "" {
			return fmt.Errorf("model %d: name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("model %q: duplicate name", e.Name)
		}
		seen[e.Name] = true
		if e.Primary {
			primaries++
		}

		switch e.Kind {
		case ModelKindForest:
			if e.Artifact == "" && e.Dataset == "" {
				return fmt.Errorf("model %q: forest needs an artifact or a dataset", e.Name)
			}
		case ModelKindKNN:
			if e.Dataset == "" {
				return fmt.Errorf("model %q: knn needs a dataset", e.Name)
			}
		case ModelKindRemote:
			if e.URL == "" {
				return fmt.Errorf("model %q: remote needs a url", e.Name)
			}
		default:
			return fmt.Errorf("model %q: unknown kind %q", e.Name, e.Kind)
		}
	}
	if primaries > 1 {
		return fmt.Errorf("at most one model may be primary, got %d", primaries)
	}
	return nil
}

// LoadManifest reads a YAML manifest. Relative paths resolve against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model manifest: %w", err)
	}

	dir := filepath.Dir(path)
	for i := range m.Models {
		m.Models[i].Artifact = resolve(dir, m.Models[i].Artifact)
		m.Models[i].Dataset = resolve(dir, m.Models[i].Dataset)
	}
	return &m, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Registry holds the loaded classifiers in manifest order
type Registry struct {
	mu          sync.RWMutex
	classifiers []Classifier
	primary     Classifier
}

// NewRegistry loads every manifest entry. Optional entries whose artifacts are
// missing are skipped; a failing required entry aborts with ModelUnavailableFault.
func NewRegistry(m *Manifest) (*Registry, error) {
	log := logger.Component("registry")
	r := &Registry{}
	datasets := make(map[string]*features.Dataset)

	for _, e := range m.Models {
		c, err := loadEntry(e, datasets)
		if err != nil {
			if e.Required {
				return nil, models.NewModelUnavailableFault("load model "+e.Name, err)
			}
			log.Warn().Err(err).Str("model", e.Name).Msg("Skipping unavailable model")
			continue
		}
		if err := r.Register(c, e.Primary); err != nil {
			return nil, err
		}
		log.Info().Str("model", e.Name).Str("kind", string(e.Kind)).Msg("Model loaded")
	}
	return r, nil
}

func loadEntry(e ManifestEntry, datasets map[string]*features.Dataset) (Classifier, error) {
	dataset := func() (*features.Dataset, error) {
		if ds, ok := datasets[e.Dataset]; ok {
			return ds, nil
		}
		ds, err := features.LoadDatasetFile(e.Dataset)
		if err != nil {
			return nil, err
		}
		datasets[e.Dataset] = ds
		return ds, nil
	}

	switch e.Kind {
	case ModelKindForest:
		if e.Artifact != "" {
			c, err := LoadForestClassifier(e.Name, e.Artifact)
			if err == nil {
				return c, nil
			}
			if !errors.Is(err, os.ErrNotExist) || e.Dataset == "" {
				return nil, err
			}
		}
		ds, err := dataset()
		if err != nil {
			return nil, err
		}
		opts := forest.DefaultOptions()
		if e.Trees > 0 {
			opts.Trees = e.Trees
		}
		if e.Seed != 0 {
			opts.Seed = e.Seed
		}
		a, err := FitForestArtifact(ds, opts)
		if err != nil {
			return nil, err
		}
		return NewForestClassifier(e.Name, a), nil

	case ModelKindKNN:
		ds, err := dataset()
		if err != nil {
			return nil, err
		}
		c, err := NewKNNClassifier(e.Name, ds, e.Neighbours)
		if err != nil {
			return nil, err
		}
		return c, nil

	case ModelKindRemote:
		c := NewRemoteClassifier(e.Name, e.URL, e.Timeout)
		if err := c.Health(); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown kind %q", e.Kind)
}

// Register adds a classifier. The first registered or any explicitly primary
// classifier serves single-model predictions. Names must be unique.
func (r *Registry) Register(c Classifier, primary bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.classifiers {
		if existing.Name() == c.Name() {
			return fmt.Errorf("model %q is already registered", c.Name())
		}
	}
	c = instrumented{Classifier: c}
	r.classifiers = append(r.classifiers, c)
	if primary || r.primary == nil {
		r.primary = c
	}
	return nil
}

// Primary returns the classifier used for recommendations
func (r *Registry) Primary() (Classifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.primary == nil {
		return nil, models.NewModelUnavailableFault("primary classifier", errors.New("no models available"))
	}
	return r.primary, nil
}

// Classifiers returns every registered classifier in registration order
func (r *Registry) Classifiers() []Classifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Classifier(nil), r.classifiers...)
}

// Names returns the registered classifier names in order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.classifiers))
	for i, c := range r.classifiers {
		names[i] = c.Name()
	}
	return names
}

// Len returns the number of registered classifiers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classifiers)
}

// PrimaryName returns the primary classifier's name, or "" when empty
func (r *Registry) PrimaryName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.primary == nil {
		return ""
	}
	return r.primary.Name()
}
