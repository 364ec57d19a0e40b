package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/message"
	"github.com/timewinder-dev/blockcheck/verify"
)

// Exit codes of the run command.
const (
	exitSafe    = 0
	exitFailure = 1
	exitUnknown = 2
)

var (
	configFile   string
	timeoutFlag  string
	parallelism  int
	smartFlag    bool
	transport    string
	redisURL     string
	traceFile    string
	visualize    bool
	workersTable bool
)

var runCmd = &cobra.Command{
	Use:   "run GRAPHFILE",
	Short: "Analyze a block graph",
	Long: `Analyze the block graph in GRAPHFILE. Run options are read from the
[run] table of --config, falling back to a [run] table in GRAPHFILE itself;
flags override both.

Exit status is 0 when the program is safe, 1 when an error location is
reachable or the analysis failed, and 2 when no verdict was reached in time.`,
	Args: cobra.ExactArgs(1),
	RunE: runCommand,
}

func init() {
	runCmd.Flags().StringVar(&configFile, "config", "", "TOML file with a [run] table")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", "", "Give up after this long (e.g. 30s, 5m)")
	runCmd.Flags().IntVar(&parallelism, "parallelism", 0, "Number of blocks analyzed at once (0 for unlimited)")
	runCmd.Flags().BoolVar(&smartFlag, "smart", false, "Handle postconditions arriving at a block entry first")
	runCmd.Flags().StringVar(&transport, "transport", "", "Message transport: memory or redis")
	runCmd.Flags().StringVar(&redisURL, "redis-url", "", "Redis server for the redis transport")
	runCmd.Flags().StringVar(&traceFile, "trace", "", "Record every message to this file as JSON lines")
	runCmd.Flags().BoolVar(&visualize, "visualize", false, "Log every message")
	runCmd.Flags().BoolVar(&workersTable, "workers", false, "Show per-worker statistics")
}

func runCommand(cmd *cobra.Command, args []string) error {
	filename := args[0]
	g, err := block.LoadGraphFromFile(filename)
	if err != nil {
		return fmt.Errorf("couldn't load graph: %w", err)
	}
	opts, err := loadOptions(cmd, filename)
	if err != nil {
		return fmt.Errorf("couldn't load run options: %w", err)
	}
	opts.Reporter = &verify.ColorReporter{Writer: os.Stderr, Workers: workersTable}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := verify.Run(ctx, g, *opts)
	if err != nil {
		return err
	}
	if code := exitCode(res); code != exitSafe {
		return &exitError{code: code}
	}
	return nil
}

func loadOptions(cmd *cobra.Command, filename string) (*verify.Options, error) {
	source := filename
	if configFile != "" {
		source = configFile
	}
	opts, err := verify.LoadOptionsFromFile(source)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		if err := opts.Timeout.UnmarshalText([]byte(timeoutFlag)); err != nil {
			return nil, fmt.Errorf("--timeout: %w", err)
		}
	}
	if flags.Changed("parallelism") {
		opts.Parallelism = parallelism
	}
	if flags.Changed("smart") {
		opts.Smart = smartFlag
	}
	if flags.Changed("transport") {
		opts.Transport = transport
	}
	if flags.Changed("redis-url") {
		opts.RedisURL = redisURL
		if !flags.Changed("transport") {
			opts.Transport = verify.TransportRedis
		}
	}
	if flags.Changed("trace") {
		opts.Trace = traceFile
	}
	if flags.Changed("visualize") {
		opts.Visualize = visualize
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log.Debug().Str("source", source).Interface("options", opts).Msg("Run options")
	return opts, nil
}

func exitCode(res *verify.Result) int {
	switch {
	case res.Failed():
		return exitFailure
	case res.Verdict == message.Safe:
		return exitSafe
	case res.Verdict == message.Violated:
		return exitFailure
	default:
		fmt.Fprintln(os.Stderr, color.Yellow.Sprint("Try again with a longer --timeout"))
		return exitUnknown
	}
}
