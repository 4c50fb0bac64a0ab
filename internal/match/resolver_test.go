package match

import "testing"

var sceneExits = []Candidate{
	{ID: "village_gate", Label: "Village Gate"},
	{ID: "market_square", Label: "Market Square"},
	{ID: "old_mill", Label: "Old Mill Trail"},
}

func TestResolveExactIDWins(t *testing.T) {
	r := New(0.35)
	got, ok := r.Resolve("Village_Gate", sceneExits)
	if !ok || got.ID != "village_gate" {
		t.Fatalf("Resolve = %v/%t, want exact id match village_gate", got, ok)
	}
}

func TestResolveMovementPhrasing(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"go to the gate", "village_gate"},
		{"walk to the market", "market_square"},
		{"run to the old mill", "old_mill"},
		{"market square", "market_square"},
		{"head through the village gate", "village_gate"},
	}
	r := New(0.35)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := r.Resolve(tt.query, sceneExits)
			if !ok {
				t.Fatalf("Resolve(%q) found nothing", tt.query)
			}
			if got.ID != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.query, got.ID, tt.want)
			}
		})
	}
}

func TestResolveBelowThreshold(t *testing.T) {
	r := New(0.35)
	if got, ok := r.Resolve("fly to the moon", sceneExits); ok {
		t.Errorf("Resolve matched %s for unrelated query", got.ID)
	}
}

func TestResolveEmptyInputs(t *testing.T) {
	r := New(0.35)
	if _, ok := r.Resolve("", sceneExits); ok {
		t.Error("empty query should not match")
	}
	if _, ok := r.Resolve("gate", nil); ok {
		t.Error("no candidates should not match")
	}
}

func TestResolveTieKeepsFirst(t *testing.T) {
	candidates := []Candidate{
		{ID: "iron_door", Label: "Iron Door"},
		{ID: "oak_door", Label: "Oak Door"},
	}
	r := New(0.35)
	got, ok := r.Resolve("the door", candidates)
	if !ok || got.ID != "iron_door" {
		t.Fatalf("Resolve = %v/%t, want first candidate on tie", got, ok)
	}
}

func TestResolveCombatThreshold(t *testing.T) {
	npcs := []Candidate{
		{ID: "rabid_wolf", Label: "Rabid Wolf"},
		{ID: "gate_warden", Label: "Gate Warden Hale"},
	}
	r := New(0.60)

	if got, ok := r.Resolve("the rabid wolf", npcs); !ok || got.ID != "rabid_wolf" {
		t.Errorf("Resolve(the rabid wolf) = %v/%t, want rabid_wolf", got, ok)
	}
	// A single shared token is not enough at the stricter combat threshold.
	if got, ok := r.Resolve("wolf creature thing", npcs); ok {
		t.Errorf("Resolve matched %s below the combat threshold", got.ID)
	}
}

func TestSequenceSimilarityHelpsMisspellings(t *testing.T) {
	candidates := []Candidate{{ID: "skeleton", Label: "Skeleton"}}

	strict := New(0.35)
	if _, ok := strict.Resolve("skelton", candidates); ok {
		t.Error("token-only scoring should not match the misspelling")
	}

	fuzzy := New(0.35, WithSequenceSimilarity())
	if _, ok := fuzzy.Resolve("skelton", candidates); !ok {
		t.Error("sequence similarity should rescue the misspelling")
	}
}

func TestNormalizeDropsStopwords(t *testing.T) {
	tokens := normalize("Go to the Village Gate!")
	want := []string{"village", "gate"}
	if len(tokens) != len(want) {
		t.Fatalf("normalize = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("normalize = %v, want %v", tokens, want)
		}
	}
}
