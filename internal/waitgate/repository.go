// Package waitgate blocks automation until the page or screen is quiet:
// the network is idle and every known busy indicator is hidden.
//
// Busy indicators live in a small YAML repository with spinners and
// overlays per context. Missing indicators never fail a wait.
package waitgate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"testctl/internal/locator"
	"testctl/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Indicators are the busy-indicator selectors of one context.
type Indicators struct {
	Spinners []string `yaml:"spinners"`
	Overlays []string `yaml:"overlays"`
}

// All returns spinners followed by overlays.
func (i Indicators) All() []string {
	out := make([]string, 0, len(i.Spinners)+len(i.Overlays))
	out = append(out, i.Spinners...)
	return append(out, i.Overlays...)
}

type repoFile struct {
	UI     Indicators `yaml:"ui"`
	Mobile Indicators `yaml:"mobile"`
}

// Repository is the YAML-backed indicator store.
type Repository struct {
	mu   sync.RWMutex
	path string
	data repoFile
}

// NewRepository loads the repository at path. A missing file yields an
// empty repository that is created on the first save.
func NewRepository(path string) (*Repository, error) {
	r := &Repository{path: path}
	if err := r.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load re-reads the file.
func (r *Repository) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		r.data = repoFile{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read wait repository %s: %w", r.path, err)
	}

	var f repoFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse wait repository %s: %w", r.path, err)
	}
	r.data = f
	logging.Debug("WaitRepository", "Loaded %d ui and %d mobile indicators from %s",
		len(f.UI.All()), len(f.Mobile.All()), r.path)
	return nil
}

// Indicators returns a copy of the context's indicators.
func (r *Repository) Indicators(context string) (Indicators, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ind, err := r.get(context)
	if err != nil {
		return Indicators{}, err
	}
	return Indicators{
		Spinners: append([]string(nil), ind.Spinners...),
		Overlays: append([]string(nil), ind.Overlays...),
	}, nil
}

// AddIndicator adds indicator to the context's spinners unless it is
// already known, then saves. It reports whether anything was added.
func (r *Repository) AddIndicator(context, indicator string) (bool, error) {
	if indicator == "" {
		return false, fmt.Errorf("indicator must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ind, err := r.get(context)
	if err != nil {
		return false, err
	}
	for _, known := range ind.All() {
		if known == indicator {
			return false, nil
		}
	}
	ind.Spinners = append(ind.Spinners, indicator)
	if err := r.save(); err != nil {
		return false, err
	}
	logging.Info("WaitRepository", "Added %s indicator %s", context, indicator)
	return true, nil
}

// Save writes the repository to disk.
func (r *Repository) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save()
}

func (r *Repository) save() error {
	data, err := yaml.Marshal(r.data)
	if err != nil {
		return fmt.Errorf("failed to encode wait repository: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create wait repository directory: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write wait repository %s: %w", r.path, err)
	}
	return nil
}

func (r *Repository) get(context string) (*Indicators, error) {
	switch context {
	case locator.ContextUI:
		return &r.data.UI, nil
	case locator.ContextMobile:
		return &r.data.Mobile, nil
	}
	return nil, fmt.Errorf("%w: %q", locator.ErrInvalidContext, context)
}
