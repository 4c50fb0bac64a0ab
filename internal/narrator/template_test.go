package narrator

import (
	"context"
	"strings"
	"testing"

	"github.com/cwhitfield/fablecore/internal/action"
	"github.com/cwhitfield/fablecore/internal/character"
	"github.com/cwhitfield/fablecore/internal/scene"
)

func TestParseActionClassifies(t *testing.T) {
	tests := []struct {
		input      string
		wantType   action.Type
		wantTarget string
	}{
		{"attack the goblin", action.TypeAttack, "goblin"},
		{"i stab the bandit with my dagger", action.TypeAttack, "bandit"},
		{"cast fireball at the troll", action.TypeSpell, "troll"},
		{"talk to the merchant", action.TypeSocial, "merchant"},
		{"ask the warden about the wolves", action.TypeSocial, "warden"},
		{"go to the market square", action.TypeMovement, "market square"},
		{"run to the gate", action.TypeMovement, "gate"},
		{"open the chest", action.TypeInteract, "chest"},
		{"take the lantern", action.TypeInteract, "lantern"},
	}
	p := NewTemplate()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			parsed, err := p.ParseAction(context.Background(), tt.input, character.TypePlayer)
			if err != nil {
				t.Fatalf("ParseAction: %v", err)
			}
			if parsed.Type != tt.wantType {
				t.Errorf("type = %s, want %s", parsed.Type, tt.wantType)
			}
			if parsed.Target != tt.wantTarget {
				t.Errorf("target = %q, want %q", parsed.Target, tt.wantTarget)
			}
		})
	}
}

func TestParseActionExtractsWeaponAndSubject(t *testing.T) {
	p := NewTemplate()

	parsed, err := p.ParseAction(context.Background(), "strike the wolf with my sword", character.TypePlayer)
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	if parsed.Weapon != "sword" {
		t.Errorf("weapon = %q, want sword", parsed.Weapon)
	}

	parsed, err = p.ParseAction(context.Background(), "ask the merchant about the cellar key", character.TypePlayer)
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	if parsed.Subject != "cellar key" {
		t.Errorf("subject = %q, want cellar key", parsed.Subject)
	}
}

func TestParseActionUnclassifiableFallsBack(t *testing.T) {
	p := NewTemplate()
	parsed, err := p.ParseAction(context.Background(), "hmmmm", character.TypePlayer)
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	if parsed.Type != action.TypeInteract || parsed.Action != "basic action" {
		t.Errorf("parsed = %+v, want generic interaction", parsed)
	}
}

func TestGenerateSceneListsNPCsAndExits(t *testing.T) {
	sc := scene.Scene{
		Label:       "Village Gate",
		Description: "A weathered gate.",
		NPCs: []scene.NPC{
			{ID: "warden", Name: "Gate Warden Hale", Status: scene.Status{IsAlive: true}},
			{ID: "corpse", Name: "Fallen Bandit", Status: scene.Status{IsAlive: false}},
		},
		Exits: []scene.Exit{{ID: "market_square", Label: "Market Square"}},
	}

	got, err := NewTemplate().GenerateScene(context.Background(), sc, nil)
	if err != nil {
		t.Fatalf("GenerateScene: %v", err)
	}
	if !strings.Contains(got, "Gate Warden Hale") {
		t.Errorf("narration %q should mention living NPCs", got)
	}
	if strings.Contains(got, "Fallen Bandit") {
		t.Errorf("narration %q should not mention the dead", got)
	}
	if !strings.Contains(got, "Market Square") {
		t.Errorf("narration %q should list exits", got)
	}
}

func TestGenerateSceneNarrationStreamsAndCompletes(t *testing.T) {
	sc := scene.Scene{Label: "Cellar", Description: "A cool stone cellar. Casks line the walls."}

	stream, err := NewTemplate().GenerateSceneNarration(context.Background(), sc, nil)
	if err != nil {
		t.Fatalf("GenerateSceneNarration: %v", err)
	}

	var chunks int
	var done bool
	for chunk := range stream {
		if chunk.Err != nil {
			t.Fatalf("chunk error: %v", chunk.Err)
		}
		if chunk.Done {
			done = true
			continue
		}
		chunks++
	}
	if chunks < 2 {
		t.Errorf("chunks = %d, want sentence-by-sentence streaming", chunks)
	}
	if !done {
		t.Error("stream should end with a done chunk")
	}
}

func TestGenerateActionNarration(t *testing.T) {
	tests := []struct {
		name    string
		parsed  action.Parsed
		hit     bool
		outcome string
		want    string
	}{
		{
			name:   "attack miss",
			parsed: action.Parsed{Actor: "Bren", Type: action.TypeAttack, Target: "wolf"},
			want:   "misses",
		},
		{
			name:    "attack crit",
			parsed:  action.Parsed{Actor: "Bren", Type: action.TypeAttack, Target: "wolf"},
			hit:     true,
			outcome: "critical",
			want:    "devastating",
		},
		{
			name:   "spell fizzle",
			parsed: action.Parsed{Actor: "Bren", Type: action.TypeSpell, Action: "fireball spell"},
			want:   "fizzles",
		},
		{
			name:   "social flop",
			parsed: action.Parsed{Actor: "Bren", Type: action.TypeSocial, Action: "persuasion attempt", Target: "warden"},
			want:   "falls flat",
		},
	}
	n := NewTemplate()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.GenerateActionNarration(context.Background(), tt.parsed, tt.hit, tt.outcome)
			if err != nil {
				t.Fatalf("GenerateActionNarration: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("narration = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestTemplateAlwaysReady(t *testing.T) {
	n := NewTemplate()
	if !n.ParserReady(context.Background()) || !n.NarratorReady(context.Background()) {
		t.Error("template narrator should always be ready")
	}
}
