// Package scene holds the scene model and the diff-merge engine that
// composes a zone's base scenes with accumulated runtime overlays.
package scene

// BlockedState marks an exit as impassable, with an optional player-facing
// reason and a hint about how it can be cleared.
type BlockedState struct {
	Active     bool           `json:"active"`
	Reason     string         `json:"reason,omitempty"`
	CanUnblock map[string]any `json:"can_unblock,omitempty"`
}

// LockRequirement describes what opens a locked exit.
type LockRequirement struct {
	StrengthDC  int    `json:"strength_dc,omitempty"`
	DexterityDC int    `json:"dexterity_dc,omitempty"`
	Key         string `json:"key,omitempty"`
}

// LockedState marks an exit as locked.
type LockedState struct {
	Active      bool             `json:"active"`
	Requirement *LockRequirement `json:"requirement,omitempty"`
}

// Exit is a traversable connection to another scene.
type Exit struct {
	ID          string        `json:"id"`
	Label       string        `json:"label"`
	TargetScene string        `json:"target_scene"`
	Blocked     *BlockedState `json:"blocked,omitempty"`
	Locked      *LockedState  `json:"locked,omitempty"`
}

// Passable reports whether the exit can currently be used.
func (e Exit) Passable() bool {
	if e.Blocked != nil && e.Blocked.Active {
		return false
	}
	if e.Locked != nil && e.Locked.Active {
		return false
	}
	return true
}

// Structure is a fixed feature of a scene.
type Structure struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Status is the mutable state of a scene NPC.
type Status struct {
	IsAlive   bool `json:"is_alive"`
	IsHostile bool `json:"is_hostile"`
	Health    int  `json:"health"`
}

// NPC is a non-player character placed in a scene.
type NPC struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	Disposition string `json:"disposition,omitempty"`
	Notable     bool   `json:"notable,omitempty"` // Quest or dialogue NPC
}

// Item is an object present in a scene.
type Item struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Interactable bool   `json:"is_interactable,omitempty"`
	Loot         bool   `json:"is_loot,omitempty"`
}

// Discovery is a hidden detail revealed by a successful perception check.
type Discovery struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Observation  string `json:"observation"`
	PerceptionDC int    `json:"perception_dc"`
	Implication  string `json:"implication,omitempty"`
	Quest        string `json:"quest,omitempty"`
	Interactable bool   `json:"is_interactable,omitempty"`
	Discovered   bool   `json:"is_discovered,omitempty"`
}

// Scene is one location inside a zone. Callers receive composed read-only
// views from the Manager; mutations travel as diffs.
type Scene struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Exits       []Exit      `json:"exits,omitempty"`
	Structures  []Structure `json:"structures,omitempty"`
	NPCs        []NPC       `json:"npcs,omitempty"`
	Items       []Item      `json:"items,omitempty"`
	Discoveries []Discovery `json:"discoveries,omitempty"`
}

// LivingNPCs returns the NPCs still able to act, in scene order.
func (s Scene) LivingNPCs() []NPC {
	var living []NPC
	for _, npc := range s.NPCs {
		if npc.Status.IsAlive {
			living = append(living, npc)
		}
	}
	return living
}

// NPCByID returns the NPC with the given id, or false.
func (s Scene) NPCByID(id string) (NPC, bool) {
	for _, npc := range s.NPCs {
		if npc.ID == id {
			return npc, true
		}
	}
	return NPC{}, false
}

// ExitByID returns the exit with the given id, or false.
func (s Scene) ExitByID(id string) (Exit, bool) {
	for _, exit := range s.Exits {
		if exit.ID == id {
			return exit, true
		}
	}
	return Exit{}, false
}

// Diff is a sparse structural overlay on a scene: object keys merge
// recursively, lists of records merge by id.
type Diff map[string]any
