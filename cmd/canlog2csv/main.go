package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/config"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/observability"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/service"
)

const version = "0.2.0"

// Exit codes: 0 success, 1 fatal error (unreadable input, malformed DBC,
// unknown dialect), 2 empty result (nothing parsed or nothing matched).
const (
	exitFatal = 1
	exitEmpty = 2
)

func main() {
	app := &cli.App{
		Name:      "canlog2csv",
		Usage:     "convert CAN bus log traces to CSV using DBC databases",
		ArgsUsage: "<log_file> <dbc_file> [<dbc_file> ...]",
		Version:   version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "output.csv",
				Usage:   "destination CSV path ('-' for stdout)",
			},
			&cli.StringFlag{
				Name:    "delimiter",
				Aliases: []string{"d"},
				Value:   ";",
				Usage:   "CSV field separator",
			},
			&cli.StringFlag{
				Name:    "name_mode",
				Aliases: []string{"n"},
				Value:   "signal",
				Usage:   "column naming: 'signal' or 'message.signal'",
			},
			&cli.BoolFlag{
				Name:    "message_counter",
				Aliases: []string{"mc"},
				Usage:   "add a per-message occurrence counter column",
			},
			&cli.BoolFlag{
				Name:    "message_pulser",
				Aliases: []string{"mp"},
				Usage:   "add a per-message 0/1 pulse column",
			},
			&cli.StringFlag{
				Name:  "dialect",
				Usage: "force log dialect (busmaster, pcan, cl2000) instead of auto-detection",
			},
			&cli.StringFlag{
				Name:  "options",
				Usage: "YAML options file with defaults (flags override it)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "diagnostic verbosity (debug, info, warn, error, quiet)",
			},
		},
		Action: run,
	}

	// ExitCoder errors are handled (and exited on) inside Run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatal)
	}
}

func run(cCtx *cli.Context) error {
	opts, err := assembleOptions(cCtx)
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}

	observability.InitLogger(opts.LogLevel)

	shutdown, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "canlog2csv",
		ServiceVersion: version,
		Endpoint:       opts.Tracing.Endpoint,
		Protocol:       opts.Tracing.Protocol,
		Enabled:        opts.Tracing.Enabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer shutdown(context.Background())
	}

	converter, err := service.NewConverter(opts)
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}

	stats, err := converter.Run(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("Conversion failed")
		if errors.Is(err, service.ErrNoFrames) || errors.Is(err, service.ErrNoMatches) {
			return cli.Exit(err.Error(), exitEmpty)
		}
		return cli.Exit(err.Error(), exitFatal)
	}

	log.Info().
		Str("dialect", stats.Dialect).
		Uint64("frames_parsed", stats.FramesParsed).
		Uint64("lines_skipped", stats.LinesSkipped).
		Uint64("dlc_mismatches", stats.DLCMismatches).
		Uint64("unknown_frames", stats.UnknownFrames).
		Uint64("signals_skipped", stats.SignalsSkipped).
		Uint64("rows_written", stats.RowsWritten).
		Dur("took", stats.Duration()).
		Msg("Conversion complete")

	return nil
}

// assembleOptions merges, lowest to highest precedence: built-in defaults,
// the YAML options file, explicit CLI flags, positional arguments.
func assembleOptions(cCtx *cli.Context) (*config.Options, error) {
	opts := config.Default()
	if path := cCtx.String("options"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	flagOverrides := map[string]func(){
		"output":          func() { opts.Output = cCtx.String("output") },
		"delimiter":       func() { opts.Delimiter = cCtx.String("delimiter") },
		"name_mode":       func() { opts.NameMode = cCtx.String("name_mode") },
		"message_counter": func() { opts.MessageCounter = cCtx.Bool("message_counter") },
		"message_pulser":  func() { opts.MessagePulser = cCtx.Bool("message_pulser") },
		"dialect":         func() { opts.Dialect = cCtx.String("dialect") },
		"log-level":       func() { opts.LogLevel = cCtx.String("log-level") },
	}
	for name, apply := range flagOverrides {
		if cCtx.IsSet(name) {
			apply()
		}
	}

	args := cCtx.Args().Slice()
	if len(args) < 2 {
		return nil, fmt.Errorf("expected <log_file> and at least one <dbc_file>")
	}
	opts.LogFile = args[0]
	opts.DBCFiles = args[1:]

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
