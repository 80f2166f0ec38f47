// Package commands implements the migrator command line: record migration,
// vocabulary management and a dependency check.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/console"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/logger"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type CLI struct {
	rootCmd    *cobra.Command
	configPath string
	logLevel   string
	cfg        *config.Config
	out        io.Writer
	errOut     io.Writer
	console    *console.Console
}

// New builds the command tree. Command output goes to out; logs go to
// errOut.
func New(out, errOut io.Writer) *CLI {
	c := &CLI{
		out:     out,
		errOut:  errOut,
		console: console.New(out),
	}
	rootCmd := &cobra.Command{
		Use:               "migrator",
		Short:             "Migrate legacy library records and check their controlled vocabularies",
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           Version,
		PersistentPreRunE: c.setup,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(c.newMigrateCmd())
	rootCmd.AddCommand(c.newVocabCmd())
	rootCmd.AddCommand(c.newDoctorCmd())
	c.rootCmd = rootCmd
	return c
}

func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	logger.SetupWriter(c.errOut, cfg.Logging.Level, cfg.Logging.Format)
	c.cfg = cfg
	return nil
}

// Execute runs the command selected by the arguments.
func (c *CLI) Execute(ctx context.Context) error {
	return c.rootCmd.ExecuteContext(ctx)
}

// SetArgs replaces os.Args. Used by tests.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}
