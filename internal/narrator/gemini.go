package narrator

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/cwhitfield/fablecore/internal/action"
	"github.com/cwhitfield/fablecore/internal/character"
	"github.com/cwhitfield/fablecore/internal/game"
	"github.com/cwhitfield/fablecore/internal/scene"
)

//go:embed prompts/parse_action.txt
var parseActionPrompt string

//go:embed prompts/scene_narration.txt
var sceneNarrationPrompt string

//go:embed prompts/action_narration.txt
var actionNarrationPrompt string

//go:embed prompts/invalid_action.txt
var invalidActionPrompt string

// DefaultModel is the Gemini model used unless overridden.
const DefaultModel = "gemini-2.5-flash"

// Gemini is the model-backed Narrator implementation.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel

	parseTmpl   *template.Template
	sceneTmpl   *template.Template
	actionTmpl  *template.Template
	invalidTmpl *template.Template
}

var _ game.Narrator = (*Gemini)(nil)

// NewGemini creates a narrator bound to the given API key. An empty
// modelName selects DefaultModel.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	g := &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}
	for _, t := range []struct {
		dst  **template.Template
		name string
		text string
	}{
		{&g.parseTmpl, "parse_action", parseActionPrompt},
		{&g.sceneTmpl, "scene_narration", sceneNarrationPrompt},
		{&g.actionTmpl, "action_narration", actionNarrationPrompt},
		{&g.invalidTmpl, "invalid_action", invalidActionPrompt},
	} {
		tmpl, err := template.New(t.name).Parse(t.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", t.name, err)
		}
		*t.dst = tmpl
	}
	return g, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() { g.client.Close() }

// ParseAction asks the model for a YAML action record.
func (g *Gemini) ParseAction(ctx context.Context, text string, actorType character.Type) (action.Parsed, error) {
	prompt, err := render(g.parseTmpl, struct{ Input string }{Input: text})
	if err != nil {
		return action.Parsed{}, err
	}
	reply, err := g.generate(ctx, prompt)
	if err != nil {
		return action.Parsed{}, err
	}

	var record struct {
		Action  string `yaml:"action"`
		Type    string `yaml:"action_type"`
		Target  string `yaml:"target"`
		Weapon  string `yaml:"weapon"`
		Subject string `yaml:"subject"`
	}
	if err := yaml.Unmarshal([]byte(stripFences(reply)), &record); err != nil {
		return action.Parsed{}, fmt.Errorf("parse action reply: %w", err)
	}

	kind := action.Type(strings.ToLower(strings.TrimSpace(record.Type)))
	if !kind.Known() {
		return action.Parsed{}, fmt.Errorf("model produced unknown action type %q", record.Type)
	}
	return action.Parsed{
		ActorType: actorType,
		Action:    record.Action,
		Target:    record.Target,
		Weapon:    record.Weapon,
		Subject:   record.Subject,
		Type:      kind,
	}, nil
}

// GenerateSceneNarration streams scene prose chunk by chunk.
func (g *Gemini) GenerateSceneNarration(ctx context.Context, sc scene.Scene, player *character.Character) (<-chan game.Chunk, error) {
	prompt, err := render(g.sceneTmpl, scenePromptData(sc, player))
	if err != nil {
		return nil, err
	}

	iter := g.model.GenerateContentStream(ctx, genai.Text(prompt))
	out := make(chan game.Chunk)
	go func() {
		defer close(out)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				out <- game.Chunk{Done: true}
				return
			}
			if err != nil {
				out <- game.Chunk{Err: err}
				return
			}
			if text := firstText(resp); text != "" {
				out <- game.Chunk{Text: text}
			}
		}
	}()
	return out, nil
}

// GenerateScene is the single-shot variant of scene narration.
func (g *Gemini) GenerateScene(ctx context.Context, sc scene.Scene, player *character.Character) (string, error) {
	prompt, err := render(g.sceneTmpl, scenePromptData(sc, player))
	if err != nil {
		return "", err
	}
	return g.generate(ctx, prompt)
}

// GenerateActionNarration narrates a resolved action.
func (g *Gemini) GenerateActionNarration(ctx context.Context, parsed action.Parsed, hit bool, outcome string) (string, error) {
	prompt, err := render(g.actionTmpl, struct {
		Actor, Action, Target, Weapon, Outcome string
		Hit                                    bool
	}{
		Actor: parsed.Actor, Action: parsed.Action, Target: parsed.Target,
		Weapon: parsed.Weapon, Outcome: outcome, Hit: hit,
	})
	if err != nil {
		return "", err
	}
	return g.generate(ctx, prompt)
}

// GenerateInvalidActionNarration narrates a failed validation in-fiction.
func (g *Gemini) GenerateInvalidActionNarration(ctx context.Context, result action.Validation, parsed action.Parsed) (string, error) {
	prompt, err := render(g.invalidTmpl, struct {
		Action, Target, Reason, Suggested string
	}{
		Action: parsed.Action, Target: parsed.Target,
		Reason: result.Reason, Suggested: result.Suggested,
	})
	if err != nil {
		return "", err
	}
	return g.generate(ctx, prompt)
}

// ParserReady probes the model with retries.
func (g *Gemini) ParserReady(ctx context.Context) bool { return g.ready(ctx) }

// NarratorReady probes the model with retries.
func (g *Gemini) NarratorReady(ctx context.Context) bool { return g.ready(ctx) }

// ready reports whether the model answers a token-count probe. Transient
// failures are retried with exponential backoff before giving up.
func (g *Gemini) ready(ctx context.Context) bool {
	probe := func() (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_, err := g.model.CountTokens(callCtx, genai.Text("ping"))
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, probe,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	return err == nil
}

// generate runs one prompt and returns the first text part of the reply.
func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	text := firstText(resp)
	if text == "" {
		return "", fmt.Errorf("no content returned from model")
	}
	return strings.TrimSpace(text), nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```yaml")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

type scenePrompt struct {
	Label       string
	Description string
	NPCs        []scene.NPC
	Exits       []scene.Exit
	Items       []scene.Item
	Player      string
}

func scenePromptData(sc scene.Scene, player *character.Character) scenePrompt {
	data := scenePrompt{
		Label:       sc.Label,
		Description: sc.Description,
		NPCs:        sc.LivingNPCs(),
		Exits:       sc.Exits,
		Items:       sc.Items,
	}
	if player != nil {
		data.Player = player.Name
	}
	return data
}
