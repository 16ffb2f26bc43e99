package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"minigit/internal/diff"
	apperrors "minigit/internal/errors"
	"minigit/internal/repository"
	"minigit/internal/workspace"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) initCmd() *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repository.Init(c.path, author, c.repoOptions()...)
			if err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}
			defer repo.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty minigit repository in %s/%s\n", repo.Root, workspace.MetaDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "Author name recorded on commits")
	return cmd
}

func (c *cli) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <paths...>",
		Short: "Stage files for the next commit",
		Long:  `Stores file contents and stages them. Directories are added recursively; use '.' for everything.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			results, err := repo.Add(args)
			if err != nil {
				return fmt.Errorf("adding files: %w", err)
			}

			added, failed := 0, 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", red("failed:"), r.Path, r.Err)
					continue
				}
				added++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d file(s)\n", added)
			if failed > 0 {
				return fmt.Errorf("%d path(s) could not be added", failed)
			}
			return nil
		},
	}
}

func (c *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <paths...>",
		Short: "Unstage files so the next commit removes them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			removed, err := repo.Remove(args)
			if err != nil {
				return fmt.Errorf("removing files: %w", err)
			}
			if len(removed) == 0 {
				return fmt.Errorf("no staged files match %s", strings.Join(args, " "))
			}
			for _, p := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "rm '%s'\n", p)
			}
			return nil
		},
	}
}

func (c *cli) commitCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			commit, err := repo.Commit(message)
			if errors.Is(err, apperrors.ErrNothingToCommit) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to commit")
				return err
			}
			if err != nil {
				return fmt.Errorf("committing: %w", err)
			}

			branch, _ := repo.CurrentBranch()
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, yellow(commit.Hash.Short()), firstLine(commit.Message))
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	cmd.MarkFlagRequired("message")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (c *cli) logCmd() *cobra.Command {
	var number int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history of the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			commits, err := repo.Log(number)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			if len(commits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No commits yet")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, commit := range commits {
				header, body, _ := strings.Cut(commit.String(), "\n")
				fmt.Fprintln(out, yellow(header))
				fmt.Fprintln(out, body)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&number, "number", "n", 0, "Number of commits to show")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.reportStatus(cmd)
		},
	}
}

func (c *cli) reportStatus(cmd *cobra.Command) error {
	repo, err := c.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()
	return printStatus(cmd, repo)
}

func printStatus(cmd *cobra.Command, repo *repository.Repository) error {
	branch, err := repo.CurrentBranch()
	if err != nil {
		return err
	}
	status, err := repo.Status()
	if err != nil {
		return fmt.Errorf("getting status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "On branch %s\n\n", branch)

	if status.Clean() {
		fmt.Fprintln(out, "Working directory clean")
		return nil
	}

	section := func(title string, groups ...[]string) bool {
		for _, g := range groups {
			if len(g) > 0 {
				fmt.Fprintln(out, title)
				return true
			}
		}
		return false
	}

	if section("Changes to be committed:", status.StagedNew, status.StagedModified, status.StagedDeleted) {
		printPaths(out, green, "new file:   ", status.StagedNew)
		printPaths(out, green, "modified:   ", status.StagedModified)
		printPaths(out, green, "deleted:    ", status.StagedDeleted)
		fmt.Fprintln(out)
	}
	if section("Changes not staged for commit:", status.NotStagedModified, status.NotStagedDeleted) {
		printPaths(out, red, "modified:   ", status.NotStagedModified)
		printPaths(out, red, "deleted:    ", status.NotStagedDeleted)
		fmt.Fprintln(out)
	}
	if section("Untracked files:", status.Untracked) {
		printPaths(out, red, "", status.Untracked)
		fmt.Fprintln(out)
	}
	return nil
}

func printPaths(out io.Writer, paint func(...interface{}) string, label string, paths []string) {
	for _, p := range paths {
		fmt.Fprintf(out, "\t%s\n", paint(label+p))
	}
}

func (c *cli) branchCmd() *cobra.Command {
	var del bool

	cmd := &cobra.Command{
		Use:               "branch [name]",
		Short:             "List, create, or delete branches",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeBranches,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if del {
					return fmt.Errorf("branch name required")
				}
				current, err := repo.CurrentBranch()
				if err != nil {
					return err
				}
				branches, err := repo.Branches()
				if err != nil {
					return err
				}
				for _, b := range branches {
					if b.Name == current {
						fmt.Fprintf(out, "* %s\n", green(b.Name))
					} else {
						fmt.Fprintf(out, "  %s\n", b.Name)
					}
				}
				return nil
			}

			name := args[0]
			if del {
				if err := repo.DeleteBranch(name); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted branch %s\n", name)
				return nil
			}

			b, err := repo.CreateBranch(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Created branch %s at %s\n", b.Name, yellow(b.Commit.Short()))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&del, "delete", "d", false, "Delete the branch")
	return cmd
}

func (c *cli) checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "checkout <branch>",
		Short:             "Switch branches",
		Long:              `Switches the current branch and resets the staging area to its tree. Working files are not modified.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeBranches,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Checkout(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to branch '%s'\n", args[0])
			return nil
		},
	}
}

func (c *cli) diffCmd() *cobra.Command {
	var (
		unified  int
		full     bool
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "diff [file]",
		Short: "Show line changes of a file",
		Long: `Compares the committed version of a file on the current branch with the
working copy. With --from and --to, compares the file between two revisions
(branch names or commit hashes); without a file, lists the paths that differ.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			if (from == "") != (to == "") {
				return fmt.Errorf("--from and --to must be used together")
			}
			if from == "" && len(args) == 0 {
				return fmt.Errorf("file required")
			}

			var result *diff.Result
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if from != "" {
				a, err := repo.Resolve(from)
				if err != nil {
					return err
				}
				b, err := repo.Resolve(to)
				if err != nil {
					return err
				}
				if path == "" {
					changed, err := repo.ChangedPaths(a, b)
					if err != nil {
						return err
					}
					for _, p := range changed {
						fmt.Fprintln(cmd.OutOrStdout(), p)
					}
					return nil
				}
				result, err = repo.DiffCommits(a, b, path, unified)
				if err != nil {
					return err
				}
			} else {
				result, err = repo.Diff(path, unified)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if result.Stats.Changes == 0 {
				fmt.Fprintln(out, diff.Format(nil))
				return nil
			}

			fmt.Fprintln(out, cyan(fmt.Sprintf("diff --minigit a/%s b/%s", path, path)))
			if full {
				printColoredDiff(out, diff.Format(result.Lines))
			} else {
				printColoredDiff(out, result.Format())
			}
			fmt.Fprintln(out, result.Summary())
			return nil
		},
	}
	cmd.Flags().IntVarP(&unified, "unified", "U", -1, "Lines of context (default from config)")
	cmd.Flags().BoolVar(&full, "full", false, "Print the whole file as an edit script instead of hunks")
	cmd.Flags().StringVar(&from, "from", "", "Old revision")
	cmd.Flags().StringVar(&to, "to", "", "New revision")
	return cmd
}

func (c *cli) mergeCmd() *cobra.Command {
	var showConflicts bool

	cmd := &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current branch",
		Long: `Performs a whole-file three-way merge against the common ancestor and
records the outcome. Merged content is reported, not written to the working tree.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeBranches,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			rec, err := repo.Merge(args[0])
			if err != nil {
				return err
			}
			printMergeRecord(cmd, rec, showConflicts)

			if err := rec.Err(); err != nil {
				return err
			}
			if !rec.Success {
				return fmt.Errorf("merge failed with %d conflict(s)", len(rec.Conflicts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showConflicts, "show-conflicts", false, "Print conflict markers for each conflicting file")
	return cmd
}

func printMergeRecord(cmd *cobra.Command, rec *repository.MergeRecord, showConflicts bool) {
	out := cmd.OutOrStdout()
	if rec.Success {
		fmt.Fprintln(out, green(rec.Message))
	} else {
		fmt.Fprintln(out, red(rec.Message))
	}

	if len(rec.Merged) > 0 {
		fmt.Fprintf(out, "Merged files: %s\n", strings.Join(rec.Merged, ", "))
	}
	if len(rec.Conflicts) > 0 {
		fmt.Fprintln(out, "Conflicts in:")
		for _, conflict := range rec.Conflicts {
			fmt.Fprintf(out, "  %s (%s)\n", red(conflict.Path), conflict.Kind)
			if showConflicts {
				fmt.Fprint(out, conflict.Format())
			}
		}
	}
	fmt.Fprintf(out, "Merge record %s\n", rec.ID)
}

func (c *cli) mergesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merges [id]",
		Short: "List recorded merges or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			if len(args) == 1 {
				rec, err := repo.MergeRecord(args[0])
				if err != nil {
					return err
				}
				printMergeRecord(cmd, rec, true)
				return nil
			}

			records, err := repo.MergeRecords()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No merges recorded")
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s -> %s  %s\n",
					rec.ID[:8],
					rec.CreatedAt.Local().Format(time.RFC3339),
					rec.Branch,
					rec.Into,
					rec.Status,
				)
			}
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print status whenever working files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := c.logger.Component("watch")

			// Only the working directory is held open; the repository is
			// opened per batch so other commands can run meanwhile.
			ws, err := repository.OpenWorkspace(c.path, logger)
			if err != nil {
				return err
			}
			watcher, err := workspace.NewWatcher(ws, debounce)
			if err != nil {
				return err
			}
			defer watcher.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", ws.Root)

			return watcher.Run(ctx, func(paths []string) {
				logger.Debug("changes detected", zap.Strings("paths", paths))
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s %s\n", cyan("changed:"), strings.Join(paths, ", "))
				if err := c.reportStatus(cmd); err != nil {
					logger.Error("printing status", zap.Error(err))
				}
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", workspace.DefaultDebounce, "Quiet period before reporting changes")
	return cmd
}

func (c *cli) fsckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fsck",
		Short: "Verify the objects reachable from every branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			report, err := repo.Verify()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked %d commit(s), %d tree(s), %d blob(s)\n", report.Commits, report.Trees, report.Blobs)
			for _, p := range report.Problems {
				fmt.Fprintln(out, red(p.String()))
			}
			if !report.OK() {
				return fmt.Errorf("%d corrupt object(s)", len(report.Problems))
			}
			return nil
		},
	}
}

// completeBranches offers branch names for the first argument.
func (c *cli) completeBranches(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	repo, err := c.openRepo()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer repo.Close()

	names, err := repo.BranchNames()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var matches []string
	for _, name := range names {
		if strings.HasPrefix(name, toComplete) {
			matches = append(matches, name)
		}
	}
	return matches, cobra.ShellCompDirectiveNoFileComp
}
