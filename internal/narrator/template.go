// Package narrator provides the language collaborators: a Gemini-backed
// narrator for real play and a rule-based template narrator that needs no
// model and is always ready.
package narrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cwhitfield/fablecore/internal/action"
	"github.com/cwhitfield/fablecore/internal/character"
	"github.com/cwhitfield/fablecore/internal/game"
	"github.com/cwhitfield/fablecore/internal/scene"
)

// actionKeywords maps trigger words to an action type and a canonical verb
// phrase. First match in iteration order wins within a type; types are
// checked in a fixed precedence order so "cast fireball at the goblin" reads
// as a spell, not an attack on the fireball.
var actionKeywords = []struct {
	kind     action.Type
	keywords map[string]string
}{
	{action.TypeSpell, map[string]string{
		"cast": "spell casting", "spell": "spell", "fireball": "fireball spell",
		"heal": "healing spell", "lightning": "lightning spell",
		"frost": "frost spell", "magic": "magic spell", "enchant": "enchantment spell",
	}},
	{action.TypeAttack, map[string]string{
		"attack": "attack", "strike": "strike", "hit": "strike",
		"shoot": "ranged attack", "stab": "stabbing attack", "slash": "slashing attack",
		"punch": "unarmed strike", "kick": "kick",
	}},
	{action.TypeMovement, map[string]string{
		"walk": "walking", "run": "running", "move": "movement", "go": "movement",
		"head": "movement", "enter": "entering", "leave": "leaving",
		"approach": "approaching", "retreat": "retreating", "flee": "fleeing",
	}},
	{action.TypeSocial, map[string]string{
		"talk": "conversation", "speak": "conversation", "say": "conversation",
		"ask": "asking", "tell": "telling", "persuade": "persuasion attempt",
		"convince": "persuasion attempt", "intimidate": "intimidation",
		"deceive": "deception", "lie": "deception",
	}},
	{action.TypeInteract, map[string]string{
		"open": "opening", "close": "closing", "pull": "pulling", "push": "pushing",
		"use": "using", "touch": "touching", "grab": "grabbing", "take": "taking",
		"search": "searching", "examine": "examination", "look": "investigation",
	}},
}

// targetPatterns pull the object of the sentence out of common phrasings.
var targetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:at|on|against|towards?|into)\s+(?:the\s+)?([\w ]+?)(?:\s+with\b|[.!?]|$)`),
	regexp.MustCompile(`\b(?:to)\s+(?:the\s+)?([\w ]+?)(?:\s+with\b|[.!?]|$)`),
	regexp.MustCompile(`\b(?:open|close|use|take|grab|examine|search|approach|enter|attack|strike|stab|slash|shoot)\s+(?:the\s+)?([\w ]+?)(?:\s+with\b|[.!?]|$)`),
	regexp.MustCompile(`\b(?:talk\s+to|ask|tell)\s+(?:the\s+)?([\w ]+?)(?:\s+about\b|[.!?]|$)`),
}

var weaponPattern = regexp.MustCompile(`\b(?:with|using|wielding)\s+(?:my\s+|the\s+|a\s+)?([\w ]+?)(?:[.!?]|$)`)
var subjectPattern = regexp.MustCompile(`\babout\s+(?:the\s+)?([\w ]+?)(?:[.!?]|$)`)

// Template is a rule-based Narrator implementation. It parses with keyword
// tables and narrates with fixed templates, so it works offline and serves
// as the fallback behind the model-backed narrator.
type Template struct{}

// NewTemplate creates the rule-based narrator.
func NewTemplate() *Template { return &Template{} }

var _ game.Narrator = (*Template)(nil)

// ParseAction extracts a structured action by keyword matching. It never
// fails: unclassifiable input becomes a generic interaction.
func (t *Template) ParseAction(_ context.Context, text string, actorType character.Type) (action.Parsed, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	parsed := action.Parsed{
		ActorType: actorType,
		Action:    "basic action",
		Type:      action.TypeInteract,
	}

	for _, group := range actionKeywords {
		for keyword, verb := range group.keywords {
			if containsWord(lower, keyword) {
				parsed.Type = group.kind
				parsed.Action = verb
				break
			}
		}
		if parsed.Action != "basic action" {
			break
		}
	}

	for _, pattern := range targetPatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			parsed.Target = strings.TrimSpace(m[1])
			break
		}
	}
	if m := weaponPattern.FindStringSubmatch(lower); m != nil {
		parsed.Weapon = strings.TrimSpace(m[1])
	}
	if m := subjectPattern.FindStringSubmatch(lower); m != nil {
		parsed.Subject = strings.TrimSpace(m[1])
	}
	// Movement with no recognized preposition: the whole phrase names the
	// destination and the resolver's stop-words absorb the verbs.
	if parsed.Type == action.TypeMovement && parsed.Target == "" {
		parsed.Target = lower
	}
	return parsed, nil
}

// GenerateSceneNarration satisfies the streaming interface by chunking the
// single-shot narration by sentence.
func (t *Template) GenerateSceneNarration(ctx context.Context, sc scene.Scene, player *character.Character) (<-chan game.Chunk, error) {
	content, err := t.GenerateScene(ctx, sc, player)
	if err != nil {
		return nil, err
	}
	out := make(chan game.Chunk)
	go func() {
		defer close(out)
		for _, sentence := range splitSentences(content) {
			out <- game.Chunk{Text: sentence}
		}
		out <- game.Chunk{Done: true}
	}()
	return out, nil
}

// GenerateScene composes a scene description from its structural parts.
func (t *Template) GenerateScene(_ context.Context, sc scene.Scene, _ *character.Character) (string, error) {
	var b strings.Builder
	b.WriteString(sc.Description)

	if living := sc.LivingNPCs(); len(living) > 0 {
		names := make([]string, len(living))
		for i, npc := range living {
			names[i] = npc.Name
		}
		fmt.Fprintf(&b, " You see %s here.", joinNames(names))
	}
	if len(sc.Exits) > 0 {
		labels := make([]string, 0, len(sc.Exits))
		for _, exit := range sc.Exits {
			labels = append(labels, exit.Label)
		}
		fmt.Fprintf(&b, " Ways out: %s.", strings.Join(labels, ", "))
	}
	return b.String(), nil
}

// GenerateActionNarration fills the outcome template for the action type.
func (t *Template) GenerateActionNarration(_ context.Context, parsed action.Parsed, hit bool, outcome string) (string, error) {
	target := parsed.Target
	if target == "" {
		target = "the target"
	}
	weapon := parsed.Weapon
	if weapon == "" {
		weapon = "their weapon"
	}

	switch parsed.Type {
	case action.TypeAttack:
		switch {
		case !hit:
			return fmt.Sprintf("%s swings at %s but misses.", parsed.Actor, target), nil
		case outcome == "critical" || outcome == "outstanding_success":
			return fmt.Sprintf("%s lands a devastating blow against %s!", parsed.Actor, target), nil
		default:
			return fmt.Sprintf("%s strikes %s with %s, dealing damage.", parsed.Actor, target, weapon), nil
		}
	case action.TypeSpell:
		if !hit {
			return fmt.Sprintf("%s attempts to cast %s but the spell fizzles.", parsed.Actor, parsed.Action), nil
		}
		return fmt.Sprintf("%s casts %s at %s, and the magic takes hold.", parsed.Actor, parsed.Action, target), nil
	case action.TypeSocial:
		if !hit {
			return fmt.Sprintf("%s's attempt at %s with %s falls flat.", parsed.Actor, parsed.Action, target), nil
		}
		return fmt.Sprintf("%s engages %s in %s, and it lands well.", parsed.Actor, target, parsed.Action), nil
	case action.TypeMovement:
		if !hit {
			return fmt.Sprintf("%s stumbles while attempting %s.", parsed.Actor, parsed.Action), nil
		}
		return fmt.Sprintf("%s moves with purpose.", parsed.Actor), nil
	default:
		if !hit {
			return fmt.Sprintf("%s fails to complete %s.", parsed.Actor, parsed.Action), nil
		}
		return fmt.Sprintf("%s successfully completes %s.", parsed.Actor, parsed.Action), nil
	}
}

// GenerateInvalidActionNarration passes the validator's reason through; the
// template narrator adds no prose of its own.
func (t *Template) GenerateInvalidActionNarration(_ context.Context, result action.Validation, _ action.Parsed) (string, error) {
	content := result.Reason
	if result.Suggested != "" {
		content += " " + result.Suggested
	}
	return content, nil
}

// ParserReady always reports true.
func (t *Template) ParserReady(context.Context) bool { return true }

// NarratorReady always reports true.
func (t *Template) NarratorReady(context.Context) bool { return true }

func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		before := idx == 0 || !isWordChar(text[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(text) || !isWordChar(text[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s+" ")
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func joinNames(names []string) string {
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
