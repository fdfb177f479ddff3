package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/rinkjoin/export"
	"github.com/briangreenhill/rinkjoin/internal/config"
	"github.com/briangreenhill/rinkjoin/internal/providers"
	"github.com/briangreenhill/rinkjoin/nhl"
	"github.com/briangreenhill/rinkjoin/record"
)

const version = "0.1.0"

const defaultID = 1

// now is replaced in tests.
var now = time.Now

func main() {
	_ = godotenv.Load()
	if err := runCLI(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCLI(args []string, out io.Writer) error {
	if len(args) == 0 {
		printHelp(out)
		return nil
	}
	switch args[0] {
	case "help", "--help", "-h":
		printHelp(out)
	case "version", "--version", "-v":
		fmt.Fprintln(out, "rinkjoin v"+version)
	case "team":
		return runPipeline(out, nhl.TeamHandle, "./teamOutput.csv", args[1:], nhl.TeamInput)
	case "player":
		return runPipeline(out, nhl.PlayerHandle, "./playerOutput.csv", args[1:], nhl.PlayerInput)
	case "list":
		stack, _, err := setup()
		if err != nil {
			return err
		}
		for _, h := range stack.Pipelines.List() {
			fmt.Fprintln(out, h)
		}
	case "gc":
		return runGC(out)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: rinkjoin <command> [key=value ...]")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  team      Run the team pipeline and write a CSV row")
	fmt.Fprintln(out, "  player    Run the player pipeline and write a CSV row")
	fmt.Fprintln(out, "  list      List the registered pipelines")
	fmt.Fprintln(out, "  gc        Drop expired entries from the response caches")
	fmt.Fprintln(out, "  version   Print the version")
	fmt.Fprintln(out, "Arguments:")
	fmt.Fprintln(out, "  id=N            Team or player ID (default 1)")
	fmt.Fprintln(out, "  season=YYYY     Season opening year (default: most recently started)")
	fmt.Fprintln(out, "  output=PATH     CSV file to write")
	fmt.Fprintln(out, "Environment:")
	fmt.Fprintln(out, "  CACHE_DIR       Response cache directory (default .cache)")
	fmt.Fprintln(out, "  NHL_BASE_URI    Stats API base URI")
	fmt.Fprintln(out, "  LOG_LEVEL       debug, info, warn or error")
}

// cliArgs holds the key=value arguments of a pipeline command.
type cliArgs struct {
	ID     int
	Season string
	Output string
}

// parseArgs reads INI style key=value pairs. Pairs that don't split into
// exactly two parts and unknown keys are ignored. An invalid id falls back
// to defaultID.
func parseArgs(args []string, defaultOutput string, logger zerolog.Logger) cliArgs {
	parsed := cliArgs{ID: defaultID, Output: defaultOutput}
	sawID := false
	for _, a := range args {
		parts := strings.Split(a, "=")
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "id":
			sawID = true
			id, err := strconv.Atoi(parts[1])
			if err != nil || id < 1 {
				logger.Warn().Str("id", parts[1]).Int("default", defaultID).Msg("invalid id, using default")
				id = defaultID
			}
			parsed.ID = id
		case "season":
			parsed.Season = parts[1]
		case "output":
			parsed.Output = parts[1]
		}
	}
	if !sawID {
		logger.Warn().Int("default", defaultID).Msg("no id passed, using default")
	}
	return parsed
}

func setup() (*providers.Stack, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		With().Timestamp().Logger().Level(cfg.Level())
	stack, err := providers.Setup(cfg, logger)
	if err != nil {
		return nil, logger, err
	}
	return stack, logger, nil
}

func runPipeline(out io.Writer, handle, defaultOutput string, args []string, input func(id, season int) *record.Record) error {
	stack, logger, err := setup()
	if err != nil {
		return err
	}
	p, ok := stack.Pipelines.Get(handle)
	if !ok {
		return fmt.Errorf("pipeline %s is not registered", handle)
	}

	parsed := parseArgs(args, defaultOutput, logger)
	season, fallback := nhl.ResolveSeason(parsed.Season, now())
	if fallback {
		logger.Warn().Str("season", parsed.Season).Int("using", season).Msg("empty or out of range season, using most recently started season")
	}

	rec, err := p.Run(context.Background(), input(parsed.ID, season))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rec); err != nil {
		return err
	}
	fmt.Fprintf(out, "output:\n%s", buf.String())
	if parsed.Output != "" {
		if err := os.WriteFile(parsed.Output, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("save %s: %w", parsed.Output, err)
		}
		fmt.Fprintf(out, "saved to %s\n", parsed.Output)
	}
	return nil
}

func runGC(out io.Writer) error {
	stack, _, err := setup()
	if err != nil {
		return err
	}
	for _, s := range stack.Outbound.Stores() {
		removed := s.CollectGarbage()
		fmt.Fprintf(out, "%s: removed %d expired entries, %d left\n", s.Name(), removed, s.Len())
	}
	return nil
}
