package zonedata

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/cwhitfield/fablecore/internal/scene"
)

// ErrUnknownZone indicates a zone name with no embedded dataset.
var ErrUnknownZone = errors.New("zone not found")

// ZoneFile is the on-disk structure of one zone dataset: a scene map plus
// the default NPC spawns used for scenes that define none.
type ZoneFile struct {
	Scenes map[string]scene.Scene `json:"scenes"`
	Spawns []scene.NPC            `json:"spawns,omitempty"`
}

// Registry holds every embedded zone dataset, keyed by zone name. It
// implements scene.ZoneSource.
type Registry struct {
	zones map[string]ZoneFile
}

// NewRegistry creates a registry from loaded zone files.
func NewRegistry(zones map[string]ZoneFile) *Registry {
	return &Registry{zones: zones}
}

// LoadRegistry loads every embedded *.json zone dataset.
func LoadRegistry() (*Registry, error) {
	entries, err := fs.Glob(dataFS, "*.json")
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no zone datasets embedded")
	}

	zones := make(map[string]ZoneFile, len(entries))
	for _, filename := range entries {
		zone, err := Load[ZoneFile](filename)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filename, ".json")
		zones[name] = zone
	}
	return NewRegistry(zones), nil
}

// MustLoadRegistry loads the registry, panicking on error. A missing or
// malformed zone file is a packaging bug, not a runtime condition.
func MustLoadRegistry() *Registry {
	registry, err := LoadRegistry()
	if err != nil {
		panic(err)
	}
	return registry
}

// Zone returns a zone's scenes and default spawns.
func (r *Registry) Zone(name string) (map[string]scene.Scene, []scene.NPC, error) {
	zone, ok := r.zones[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	return zone.Scenes, zone.Spawns, nil
}

// Names lists the available zones in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.zones))
	for name := range r.zones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of embedded zones.
func (r *Registry) Count() int {
	return len(r.zones)
}
