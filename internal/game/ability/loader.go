package ability

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/actioncore/internal/game/condition"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

// Content is one complete load of the content directory.
type Content struct {
	Archetypes *ruleset.ArchetypeRegistry
	Conditions *condition.Registry
	Actions    []*Template
}

// LoadTemplates reads every YAML file in dir as a list of templates. A shared
// delay without a duration takes its category's duration from delays.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns templates in file then document order, or a non-nil error.
func LoadTemplates(dir string, delays map[string]time.Duration) ([]*Template, error) {
	files, err := ruleset.YAMLFiles(dir)
	if err != nil {
		return nil, err
	}
	var out []*Template
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var batch []*Template
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&batch); err != nil {
			return nil, fmt.Errorf("parsing action file %s: %w", path, err)
		}
		for _, t := range batch {
			if err := fillSharedDelay(t, delays); err != nil {
				return nil, fmt.Errorf("action file %s: %w", path, err)
			}
		}
		out = append(out, batch...)
	}
	return out, nil
}

func fillSharedDelay(t *Template, delays map[string]time.Duration) error {
	if t.SharedDelay == nil || t.SharedDelay.Duration > 0 {
		return nil
	}
	d, ok := delays[t.SharedDelay.Category]
	if !ok {
		return fmt.Errorf("action %q: shared delay category %q has no duration", t.ID, t.SharedDelay.Category)
	}
	t.SharedDelay.Duration = d
	return nil
}

// LoadContent loads dir/archetypes, dir/conditions, and dir/actions. The
// conditions directory is optional.
//
// Postcondition: Returns fully parsed content; templates are not yet validated
// against the effect registry (Catalog.Reload does that).
func LoadContent(dir string) (*Content, error) {
	archetypes, err := ruleset.LoadArchetypes(filepath.Join(dir, "archetypes"))
	if err != nil {
		return nil, fmt.Errorf("loading archetypes: %w", err)
	}
	reg := ruleset.NewArchetypeRegistry()
	for _, a := range archetypes {
		reg.Register(a)
	}
	delays, err := reg.SharedDelayTable()
	if err != nil {
		return nil, fmt.Errorf("loading archetypes: %w", err)
	}

	conds, err := condition.LoadDirectory(filepath.Join(dir, "conditions"))
	if errors.Is(err, fs.ErrNotExist) {
		conds, err = condition.NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conditions: %w", err)
	}

	actions, err := LoadTemplates(filepath.Join(dir, "actions"), delays)
	if err != nil {
		return nil, fmt.Errorf("loading actions: %w", err)
	}
	return &Content{Archetypes: reg, Conditions: conds, Actions: actions}, nil
}
