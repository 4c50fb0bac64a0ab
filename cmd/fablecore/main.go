// Package main is the entry point for fablecore: a console front-end over
// the turn orchestrator, reading player actions from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cwhitfield/fablecore/internal/character"
	"github.com/cwhitfield/fablecore/internal/config"
	"github.com/cwhitfield/fablecore/internal/dice"
	"github.com/cwhitfield/fablecore/internal/game"
	"github.com/cwhitfield/fablecore/internal/gateway"
	"github.com/cwhitfield/fablecore/internal/logging"
	"github.com/cwhitfield/fablecore/internal/narrator"
	"github.com/cwhitfield/fablecore/internal/scene"
	"github.com/cwhitfield/fablecore/internal/telemetry"
	"github.com/cwhitfield/fablecore/internal/zonedata"
)

func main() {
	// Local development convenience; env vars may also be set directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: .env file not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, syncLogs := logging.Init(cfg.LogPath, cfg.Debug)
	defer syncLogs()

	ctx := context.Background()

	if cfg.Telemetry {
		setupOTelEnv()
		shutdown, err := telemetry.Setup(ctx)
		if err != nil {
			logger.Warnw("telemetry setup failed, continuing without it", "err", err)
		} else {
			defer func() {
				if err := shutdown(ctx); err != nil {
					logger.Warnw("telemetry shutdown failed", "err", err)
				}
			}()
		}
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorw("fatal", "err", err)
		log.Fatalf("fablecore: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) error {
	registry := zonedata.MustLoadRegistry()
	scenes := scene.NewManager(registry, logger)

	console := gateway.NewConsole(os.Stdout)
	store, err := gateway.Open(cfg.DatabasePath, logger, console)
	if err != nil {
		return err
	}
	defer store.Close()

	// Overlay changes persist as they happen; a zone switch also flushes
	// whatever accumulated.
	scenes.Subscribe(func(sceneID string, diff scene.Diff) {
		if err := store.SaveSceneDiff(context.Background(), sceneID, diff); err != nil {
			logger.Warnw("scene diff persistence failed", "scene", sceneID, "err", err)
		}
	})
	scenes.SetFlush(func(sceneID string, diff scene.Diff) error {
		return store.SaveSceneDiff(context.Background(), sceneID, diff)
	})

	teller, cleanup, err := buildNarrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	factory := dice.NewFactory()
	roller, err := factory.Roller(cfg.RuleSet, cfg.DiceSeed)
	if err != nil {
		return err
	}

	engine := game.New(
		game.Config{
			MaxInvalidAttempts: cfg.MaxInvalidAttempts,
			ExitThreshold:      cfg.ExitThreshold,
			TargetThreshold:    cfg.TargetThreshold,
		},
		teller, store, scenes, roller,
		game.WithLogger(logger),
	)

	state := &game.SessionState{
		ID:      "local",
		Zone:    cfg.Zone,
		SceneID: cfg.StartScene,
	}
	if saved, err := store.LoadSession(ctx, state.ID); err == nil {
		state = saved
		logger.Infow("resuming saved session", "turn", state.TurnCounter, "scene", state.SceneID)
	} else if !errors.Is(err, gateway.ErrSessionNotFound) {
		return err
	}

	player := &character.Character{
		ID:    "player",
		Name:  cfg.PlayerName,
		Kind:  character.TypePlayer,
		HP:    20,
		MaxHP: 20,
	}

	if err := engine.Load(ctx, state, player); err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}

	return repl(ctx, engine)
}

// repl reads player actions from stdin until EOF, "quit", or the game ends.
func repl(ctx context.Context, engine *game.Engine) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			return nil
		}

		switch err := engine.SubmitPlayerAction(ctx, text); {
		case err == nil:
		case errors.Is(err, game.ErrGameEnded):
			return nil
		case errors.Is(err, game.ErrAttemptsExhausted):
			fmt.Println("The narrator could not make sense of that. Try rephrasing.")
		case errors.Is(err, game.ErrProcessing), errors.Is(err, game.ErrInputLocked):
			fmt.Println("Hold on...")
		default:
			return err
		}
	}
}

// buildNarrator picks the Gemini narrator when an API key is configured and
// it answers the readiness probe, the offline template narrator otherwise.
func buildNarrator(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (game.Narrator, func(), error) {
	if cfg.GeminiAPIKey == "" {
		logger.Infow("no API key configured, using template narrator")
		return narrator.NewTemplate(), func() {}, nil
	}

	gemini, err := narrator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, nil, err
	}
	if !gemini.NarratorReady(ctx) {
		logger.Warnw("model narrator not ready, falling back to templates")
		gemini.Close()
		return narrator.NewTemplate(), func() {}, nil
	}
	return gemini, gemini.Close, nil
}

// setupOTelEnv points the OTLP exporter at Honeycomb using our env vars.
func setupOTelEnv() {
	os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://api.honeycomb.io")

	apiKey := os.Getenv("HONEYCOMB_FABLECORE_API_KEY")
	dataset := os.Getenv("HONEYCOMB_FABLECORE_DATASET")
	if dataset == "" {
		dataset = "fablecore"
	}
	if apiKey != "" {
		os.Setenv("OTEL_EXPORTER_OTLP_HEADERS",
			fmt.Sprintf("x-honeycomb-team=%s,x-honeycomb-dataset=%s", apiKey, dataset))
	}
}
