// cmd/minigit/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"minigit/internal/config"
	"minigit/internal/logging"
	"minigit/internal/repository"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// cli carries the global flags and the logger built from them.
type cli struct {
	path     string
	logLevel string
	logger   *logging.Logger
}

func newRootCmd() *cobra.Command {
	return newCLI().rootCmd()
}

func newCLI() *cli {
	return &cli{logger: logging.NewNop()}
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "minigit",
		Short: "minigit is a small content-addressed version control system",
		Long: `minigit snapshots a working directory into content-addressed objects,
keeps a single-parent commit history per branch, and performs line diffs and
whole-file three-way merges.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewLogger(c.resolveLogLevel())
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.path, "path", ".", "Repository path")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		c.initCmd(),
		c.addCmd(),
		c.rmCmd(),
		c.commitCmd(),
		c.logCmd(),
		c.statusCmd(),
		c.branchCmd(),
		c.checkoutCmd(),
		c.diffCmd(),
		c.mergeCmd(),
		c.mergesCmd(),
		c.watchCmd(),
		c.fsckCmd(),
	)

	return rootCmd
}

// openRepo opens the repository containing --path.
func (c *cli) openRepo() (*repository.Repository, error) {
	return repository.Discover(c.path, c.repoOptions()...)
}

func (c *cli) repoOptions() []repository.Option {
	return []repository.Option{repository.WithLogger(c.logger.Logger)}
}

// resolveLogLevel prefers --log-level, then the configuration of the
// repository at --path, then the user config.
func (c *cli) resolveLogLevel() string {
	if c.logLevel != "" {
		return c.logLevel
	}
	cfg, err := repository.LoadConfig(c.path)
	if err != nil {
		cfg, err = config.LoadLayered(os.Getenv(config.EnvUserConfig))
	}
	if err != nil || cfg.LogLevel == "" {
		return config.Default().LogLevel
	}
	return cfg.LogLevel
}

// printColoredDiff writes unified diff text with added lines green, removed
// lines red and hunk headers cyan.
func printColoredDiff(w io.Writer, diff string) {
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			fmt.Fprintln(w, cyan(line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(w, green(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(w, red(line))
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}
