package condition

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ConditionDef is the static definition of a buff or debuff, loaded from YAML.
type ConditionDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Duration is the wall-clock lifetime of one application. Zero is permanent.
	Duration  time.Duration `yaml:"duration"`
	MaxStacks int           `yaml:"max_stacks"` // 0 = unstackable
	// StatModifiers are added to the bearer's effective stats once per stack.
	StatModifiers map[string]int `yaml:"stat_modifiers"`
}

// Validate checks the definition's invariants.
//
// Postcondition: Returns nil if ID and Name are set and no numeric field is negative.
func (d *ConditionDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("condition id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, fmt.Errorf("condition %q: name must not be empty", d.ID))
	}
	if d.Duration < 0 {
		errs = append(errs, fmt.Errorf("condition %q: duration must not be negative", d.ID))
	}
	if d.MaxStacks < 0 {
		errs = append(errs, fmt.Errorf("condition %q: max_stacks must not be negative", d.ID))
	}
	return errors.Join(errs...)
}

// Registry holds ConditionDefs keyed by ID. It is filled at load time and
// read-only afterwards.
type Registry struct {
	defs map[string]*ConditionDef
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*ConditionDef)}
}

// Register adds def, replacing any definition with the same ID.
func (r *Registry) Register(def *ConditionDef) {
	r.defs[def.ID] = def
}

// Get returns the ConditionDef for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*ConditionDef, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns every definition ordered by ID.
func (r *Registry) All() []*ConditionDef {
	out := make([]*ConditionDef, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadDirectory parses every .yaml or .yml file in dir. A file may hold
// several conditions as separate YAML documents.
//
// Postcondition: Returns a Registry of validated, uniquely named conditions,
// or the first parse, validation, or duplicate error.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := reg.loadFile(path); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (r *Registry) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	for doc := 1; ; doc++ {
		def := new(ConditionDef)
		err := dec.Decode(def)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s document %d: %w", path, doc, err)
		}
		if err := def.Validate(); err != nil {
			return fmt.Errorf("%s document %d: %w", path, doc, err)
		}
		if _, dup := r.defs[def.ID]; dup {
			return fmt.Errorf("%s: duplicate condition id %q", path, def.ID)
		}
		r.defs[def.ID] = def
	}
}
