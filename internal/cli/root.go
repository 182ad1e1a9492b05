package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/bucketoffset"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Seed       uint64
	Length     int
	Backend    string
	Timeout    time.Duration
	SPIRV      bool
	ListAll    bool
	LogLevel   string

	// Config is resolved in PersistentPreRunE: defaults, then the config
	// file, then flags that were set explicitly.
	Config bucketoffset.Config
}

// NewRootCommand creates the root command of bucketcheck. Without a
// subcommand it behaves like "bucketcheck run".
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	defaults := bucketoffset.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "bucketcheck",
		Short: "Check a GPU bucket-offset kernel against the host",
		Long: `Run a 6-bit bucket-offset kernel on an accelerator and compare every
element with a host computation over the same deterministic input.

Exit status is 0 when every element matches, 1 when the accelerator
disagrees with the host, and 2 when the run could not complete.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			level, _ := bucketoffset.ParseLogLevel(cfg.LogLevel)
			bucketoffset.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	flags.Uint64Var(&opts.Seed, "seed", defaults.Seed, "input generator seed")
	flags.IntVarP(&opts.Length, "length", "n", defaults.Length,
		fmt.Sprintf("number of input elements (1..%d)", bucketoffset.MaxLength))
	flags.StringVarP(&opts.Backend, "backend", "b", defaults.Backend, "backend name (empty: first available)")
	flags.DurationVar(&opts.Timeout, "timeout", defaults.Timeout, "bound on the submission and readback waits")
	flags.BoolVar(&opts.SPIRV, "spirv", defaults.SPIRV, "compile the kernel to SPIR-V on the host")
	flags.BoolVar(&opts.ListAll, "list-all", defaults.ListAll, "print every index, not only mismatches")
	flags.StringVar(&opts.LogLevel, "log-level", defaults.LogLevel, "log level (debug|info|warn|error)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewBackendsCommand(opts))

	return cmd
}

// resolveConfig layers explicitly set flags over the config file or the
// defaults.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) (bucketoffset.Config, error) {
	cfg := bucketoffset.DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := bucketoffset.LoadConfig(opts.ConfigPath)
		if err != nil {
			return bucketoffset.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = opts.Seed
	}
	if flags.Changed("length") {
		cfg.Length = opts.Length
	}
	if flags.Changed("backend") {
		cfg.Backend = opts.Backend
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.Timeout
	}
	if flags.Changed("spirv") {
		cfg.SPIRV = opts.SPIRV
	}
	if flags.Changed("list-all") {
		cfg.ListAll = opts.ListAll
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.LogLevel
	}
	return cfg, cfg.Validate()
}
