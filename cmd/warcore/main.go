package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OCAP2/warcore/internal/app"
	"github.com/OCAP2/warcore/internal/logging"
	"github.com/OCAP2/warcore/pkg/core"
)

const usage = `usage: warcore <command> [args]

commands:
  seed <battle> <file.json>        load matchups, terrain and roster into the catalogue
  scan <battle>                    list visible enemies of every unit
  engage <battle>                  list weighted engagements
  plan <battle> <unit> <x> <y>     plan a path for a unit

The config directory is $WARCORE_CONFIG_DIR (default "."). Unless
storage.sqlite.path is set, the catalogue is kept in warcore.db there.`

func main() {
	args := os.Args[1:]
	if len(args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	configDir := os.Getenv("WARCORE_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.Start(ctx, configDir, app.WithDefaultSQLitePath(filepath.Join(configDir, "warcore.db")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, a, strings.ToLower(args[0]), args[1:])
	if shutdownErr := a.Shutdown(ctx); shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", shutdownErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, command string, args []string) error {
	battleID := args[0]
	ctx = logging.WithAttrs(ctx, slog.String("command", command))

	if command == "seed" {
		if len(args) < 2 {
			return fmt.Errorf("missing seed file")
		}
		if err := seedBattle(ctx, a.Backend, battleID, args[1]); err != nil {
			return err
		}
		a.Logger.InfoContext(ctx, "Seeded battle", "battle", battleID, "file", args[1])
		return nil
	}

	s, err := a.OpenSession(ctx, battleID)
	if err != nil {
		return err
	}
	defer s.Close()

	switch command {
	case "scan":
		sightings, err := s.Scan(ctx)
		if err != nil {
			return err
		}
		for _, sg := range sightings {
			fmt.Println(formatSighting(sg))
		}

	case "engage":
		engagements, err := s.Engagements(ctx)
		if err != nil {
			return err
		}
		for _, e := range engagements {
			fmt.Println(formatEngagement(e))
		}

	case "plan":
		if len(args) < 4 {
			return fmt.Errorf("usage: plan <battle> <unit> <x> <y>")
		}
		x, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid x: %w", err)
		}
		y, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("invalid y: %w", err)
		}
		path, ok, err := s.Plan(ctx, args[1], core.Coordinate{X: x, Y: y}, nil)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no path")
			break
		}
		out, err := formatPlan(path)
		if err != nil {
			return err
		}
		fmt.Println(out)

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	_, err = s.EndTick(ctx)
	return err
}
