// cmd/sbvc/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sbvc/internal/config"
	"sbvc/internal/logging"
	"sbvc/internal/store"
	"sbvc/internal/version"
	"sbvc/internal/watch"
)

var (
	logger *zap.Logger

	flagConfig  string
	flagFile    string
	flagBackend string
	flagStore   string
)

var rootCmd = &cobra.Command{
	Use:   "sbvc",
	Short: "sbvc is a single-file version control system",
	Long: `sbvc tracks the history of one file as a tree of versions. Every version
stores only a byte-level delta against its parent; any version's content can
be reconstructed and written back into the tracked file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := logging.NewLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		logger = log.Logger
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}
	if flagFile == "" {
		return nil, fmt.Errorf("either --config or --file is required")
	}

	cfg := config.Default(flagFile)
	if flagBackend != "" {
		cfg.Store.Backend = config.Backend(flagBackend)
	}
	if flagStore != "" {
		cfg.Store.Path = flagStore
	}
	return cfg, nil
}

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening version store: %w", err)
	}
	return st, nil
}

func parseID(arg string) (uint32, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid version id %q", arg)
	}
	return uint32(id), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a JSON config file")
	rootCmd.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "tracked file path")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "store backend: sqlite, badger or flat")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "store path (defaults to <file>.db)")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a version store for the tracked file",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Printf("Initialized version store for %s (root version %d)\n",
				st.TrackedPath(), st.Root().ID())
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Snapshot the tracked file as a child of the current version",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			child, err := st.Commit(cmd.Context())
			if err != nil {
				return fmt.Errorf("committing: %w", err)
			}

			fmt.Printf("Committed version %d (%d deletions, %d insertions)\n",
				child.ID(), child.DeletionCount(), child.InsertionCount())
			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Print the version tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			printTree(st, st.Root(), "")
			return nil
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show [id]",
		Short: "Print a version's reconstructed content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			r, err := st.Find(id)
			if err != nil {
				return err
			}
			os.Stdout.Write(st.Content(r))
			return nil
		},
	}

	var renameCmd = &cobra.Command{
		Use:   "rename [id] [name]",
		Short: "Rename a version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Rename(cmd.Context(), id, args[1]); err != nil {
				return fmt.Errorf("renaming version %d: %w", id, err)
			}
			fmt.Printf("Renamed version %d to %q\n", id, args[1])
			return nil
		},
	}

	var deleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a version and its whole subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting version %d: %w", id, err)
			}
			fmt.Printf("Deleted version %d and its subtree\n", id)
			return nil
		},
	}

	var checkoutCmd = &cobra.Command{
		Use:   "checkout [id]",
		Short: "Write a version's content into the tracked file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			r, err := st.Checkout(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("checking out version %d: %w", id, err)
			}
			fmt.Printf("Checked out version %d (%s)\n", r.ID(), r.Name())
			return nil
		},
	}

	var rollbackCmd = &cobra.Command{
		Use:   "rollback [id]",
		Short: "Roll the tracked file back to a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Rollback(cmd.Context(), id); err != nil {
				return fmt.Errorf("rolling back to version %d: %w", id, err)
			}
			fmt.Printf("Rolled %s back to version %d\n", st.TrackedPath(), id)
			return nil
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Auto-commit the tracked file on every change",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			w, err := watch.New(st, logger)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Watching %s (ctrl-c to stop)\n", st.TrackedPath())
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	rootCmd.AddCommand(initCmd, commitCmd, logCmd, showCmd, renameCmd,
		deleteCmd, checkoutCmd, rollbackCmd, watchCmd)
}

func printTree(st *store.Store, r *version.Record, indent string) {
	idColor := color.New(color.FgYellow)
	nameColor := color.New(color.FgGreen)

	marker := " "
	if r.ID() == st.Current().ID() {
		marker = color.New(color.FgCyan).Sprint("*")
	}

	fmt.Printf("%s%s %s %s (%s, -%d +%d)\n",
		indent,
		marker,
		idColor.Sprintf("%d", r.ID()),
		nameColor.Sprint(r.Name()),
		r.CreatedAt().Format("2006-01-02 15:04:05"),
		r.DeletionCount(),
		r.InsertionCount())

	for _, child := range r.Children() {
		printTree(st, child, indent+"  ")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
