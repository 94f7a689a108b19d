// Package cmd defines the heirfinder CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/config"
	"github.com/JakeFAU/heir-finder/internal/logging"
	bootstrap "github.com/JakeFAU/heir-finder/pkg/config"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitSetup       = 1
	ExitIncomplete  = 2
	ExitInterrupted = 130
)

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// rootOptions is shared by every subcommand after PersistentPreRunE.
type rootOptions struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New(), logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "heirfinder",
		Short: "Screens property owners against county probate and tax portals.",
		Long: `heirfinder reads an owner extract, searches each owner on a county portal
with a pool of headless browser workers, and writes the qualifying rows to a
text log, a CSV file and optionally an XLSX workbook.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			used, err := bootstrap.InitConfig(opts.v, opts.cfgFile)
			if err != nil {
				return withCode(ExitSetup, err)
			}
			cfg, err := config.FromViper(opts.v)
			if err != nil {
				return withCode(ExitSetup, err)
			}
			logger, err := logging.NewWithLevel(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return withCode(ExitSetup, err)
			}
			opts.cfg = cfg
			opts.logger = logger
			if used != "" {
				logger.Info("Using config file", zap.String("path", used))
			}
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default ./config.yaml, /etc/heirfinder, $HOME/.heirfinder)")
	cmd.PersistentFlags().String("input", "", "input extract path")
	cmd.PersistentFlags().String("variant", "", "extract format and portal: probate or tax")
	cmd.PersistentFlags().Int("start", 0, "first row index to process (1-based, 0 = first)")
	cmd.PersistentFlags().Int("end", 0, "last row index to process (0 = last)")
	bindFlags(opts.v, cmd, map[string]string{
		"source.input":   "input",
		"source.variant": "variant",
		"run.start":      "start",
		"run.end":        "end",
	}, true)

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newParseCmd(opts))
	return cmd
}

// bindFlags binds viper keys to flags. Unset flags keep the config value.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// Execute runs the CLI and returns the process exit code. SIGINT and SIGTERM
// cancel the root context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, newRootCmd(), os.Args[1:])
}

func execute(ctx context.Context, cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", exitErr.err)
		}
		return exitErr.code
	}
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return ExitSetup
}
