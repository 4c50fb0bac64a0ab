package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// ErrUnknownScene indicates a scene id absent from the loaded zone. This is
// a static-data bug, not a runtime condition to recover from; callers should
// let it propagate.
var ErrUnknownScene = errors.New("scene not found in loaded zone")

// ErrNoZone indicates an operation before any zone was loaded.
var ErrNoZone = errors.New("no zone loaded")

// ZoneSource supplies a zone's base scenes and its default NPC spawns.
// Implemented by the zonedata registry.
type ZoneSource interface {
	Zone(name string) (scenes map[string]Scene, spawns []NPC, err error)
}

// SubscribeFunc observes applied diffs.
type SubscribeFunc func(sceneID string, diff Diff)

// FlushFunc persists an accumulated diff before it is discarded.
type FlushFunc func(sceneID string, diff Diff) error

// Manager owns the scenes of the currently loaded zone. Base scenes are
// never mutated; runtime changes accumulate per scene as a diff overlay and
// GetScene composes base + overlay on every call.
//
// One Manager belongs to one zone-loader; ApplyDiff and GetScene are guarded
// so multiple sessions may share a zone.
type Manager struct {
	source ZoneSource
	log    *zap.SugaredLogger

	mu       sync.RWMutex
	zone     string
	base     map[string]Scene
	spawns   []NPC
	overlays map[string]Diff
	digests  map[string]uint64
	subs     []SubscribeFunc
	flush    FlushFunc
}

// NewManager creates a manager over the given zone source.
func NewManager(source ZoneSource, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		source:   source,
		log:      log,
		overlays: make(map[string]Diff),
		digests:  make(map[string]uint64),
	}
}

// Subscribe registers an observer for applied diffs. Observers run after the
// overlay is updated, outside the manager lock.
func (m *Manager) Subscribe(fn SubscribeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// SetFlush registers the persistence hook invoked for each accumulated diff
// before a zone switch discards it.
func (m *Manager) SetFlush(fn FlushFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flush = fn
}

// Zone returns the name of the loaded zone, or "".
func (m *Manager) Zone() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zone
}

// LoadZone makes a zone current, discarding the previous zone's scenes and
// overlays after flushing the overlays through the persist hook. Loading the
// already-current zone is a no-op.
func (m *Manager) LoadZone(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zone == name {
		return nil
	}

	for sceneID, overlay := range m.overlays {
		if m.flush == nil {
			break
		}
		if err := m.flush(sceneID, overlay); err != nil {
			return fmt.Errorf("flush diff for %s: %w", sceneID, err)
		}
	}

	scenes, spawns, err := m.source.Zone(name)
	if err != nil {
		return fmt.Errorf("load zone %s: %w", name, err)
	}

	m.zone = name
	m.base = scenes
	m.spawns = spawns
	m.overlays = make(map[string]Diff)
	m.digests = make(map[string]uint64)
	m.log.Infow("zone loaded", "zone", name, "scenes", len(scenes))
	return nil
}

// ApplyDiff deep-merges a diff into the scene's accumulated overlay and
// notifies subscribers. Re-applying a diff that changes nothing skips the
// notification.
func (m *Manager) ApplyDiff(sceneID string, diff Diff) error {
	m.mu.Lock()
	if m.zone == "" {
		m.mu.Unlock()
		return ErrNoZone
	}
	if _, ok := m.base[sceneID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownScene, sceneID)
	}

	overlay := m.overlays[sceneID]
	if overlay == nil {
		overlay = Diff{}
	}
	merged := Diff(DeepMerge(overlay, diff))

	digest := overlayDigest(merged)
	if digest == m.digests[sceneID] {
		m.mu.Unlock()
		return nil
	}
	m.overlays[sceneID] = merged
	m.digests[sceneID] = digest
	subs := append([]SubscribeFunc(nil), m.subs...)
	m.mu.Unlock()

	m.log.Debugw("scene diff applied", "scene", sceneID)
	for _, fn := range subs {
		fn(sceneID, diff)
	}
	return nil
}

// GetScene composes base + accumulated overlay into a fresh snapshot. The
// base stays pristine, so dropping the overlay rolls the scene back.
func (m *Manager) GetScene(sceneID string) (Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.zone == "" {
		return Scene{}, ErrNoZone
	}
	base, ok := m.base[sceneID]
	if !ok {
		return Scene{}, fmt.Errorf("%w: %s", ErrUnknownScene, sceneID)
	}

	composed := base
	if overlay := m.overlays[sceneID]; len(overlay) > 0 {
		merged := DeepMerge(toMap(base), overlay)
		if err := fromMap(merged, &composed); err != nil {
			return Scene{}, fmt.Errorf("compose scene %s: %w", sceneID, err)
		}
	}

	// Scenes that define no NPCs get the zone's default spawns.
	if len(composed.NPCs) == 0 && len(m.spawns) > 0 {
		composed.NPCs = append([]NPC(nil), m.spawns...)
	}
	return composed, nil
}

// Overlay returns a copy of the accumulated diff for a scene, or nil.
func (m *Manager) Overlay(sceneID string) Diff {
	m.mu.RLock()
	defer m.mu.RUnlock()
	overlay := m.overlays[sceneID]
	if overlay == nil {
		return nil
	}
	return Diff(cloneValue(map[string]any(overlay)).(map[string]any))
}

// overlayDigest fingerprints an overlay. json.Marshal sorts map keys, so the
// encoding is canonical.
func overlayDigest(overlay Diff) uint64 {
	encoded, err := json.Marshal(overlay)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(encoded)
}

func toMap(s Scene) map[string]any {
	encoded, _ := json.Marshal(s)
	var m map[string]any
	_ = json.Unmarshal(encoded, &m)
	return m
}

func fromMap(m map[string]any, s *Scene) error {
	encoded, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, s)
}
