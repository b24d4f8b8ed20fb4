// Command raftlogctl inspects and manipulates a leveldb-backed raftlog
// directory from the command line: append, commit, get, scan, and status,
// as an operator-facing tool rather than a test harness.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coname/raftlog"
	"github.com/coname/raftlog/engine/leveldbengine"
)

var (
	dataDir  string
	logLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "raftlogctl",
		Short: "Inspect and manipulate a raftlog data directory",
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "./raftlog-data", "leveldb directory backing the log")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zap log level (debug, info, warn, error)")

	root.AddCommand(newAppendCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newStatusCmd())
	return root
}

func openLog() (*raftlog.Log, func(), error) {
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	eng, err := leveldbengine.Open(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", dataDir, err)
	}

	log, err := raftlog.Open(eng, raftlog.WithLogger(logger))
	if err != nil {
		eng.Close()
		return nil, nil, fmt.Errorf("open log: %w", err)
	}

	cleanup := func() {
		eng.Close()
		_ = logger.Sync()
	}
	return log, cleanup, nil
}

func newAppendCmd() *cobra.Command {
	var term uint64
	cmd := &cobra.Command{
		Use:   "append [command]",
		Short: "Append a command to the log at the given term",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cleanup, err := openLog()
			if err != nil {
				return err
			}
			defer cleanup()

			if term != 0 {
				if err := log.SetTermVote(term, nil); err != nil {
					return err
				}
			}

			var command []byte
			if len(args) == 1 {
				command = []byte(args[0])
			}
			index, err := log.Append(command)
			if err != nil {
				return err
			}
			fmt.Printf("appended index=%d\n", index)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&term, "term", 0, "set the current term before appending (0 = keep current term)")
	return cmd
}

func newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit <index>",
		Short: "Advance the commit index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cleanup, err := openLog()
			if err != nil {
				return err
			}
			defer cleanup()

			var index uint64
			if _, err := fmt.Sscanf(args[0], "%d", &index); err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}
			committed, err := log.Commit(raftlog.Index(index))
			if err != nil {
				return err
			}
			fmt.Printf("committed index=%d\n", committed)
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <index>...",
		Short: "Print the entry at each given index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cleanup, err := openLog()
			if err != nil {
				return err
			}
			defer cleanup()

			for _, arg := range args {
				var index uint64
				if _, err := fmt.Sscanf(arg, "%d", &index); err != nil {
					return fmt.Errorf("invalid index %q: %w", arg, err)
				}
				entry, err := log.Get(raftlog.Index(index))
				if err != nil {
					return err
				}
				if entry == nil {
					fmt.Printf("%d: <absent>\n", index)
					continue
				}
				fmt.Printf("%d@%d: %q\n", entry.Index, entry.Term, entry.Command)
			}
			return nil
		},
	}
}

func newScanCmd() *cobra.Command {
	var from, to uint64
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Print entries in an index range",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cleanup, err := openLog()
			if err != nil {
				return err
			}
			defer cleanup()

			lo := raftlog.MinIndex
			hi := raftlog.MaxIndex
			if from != 0 {
				lo = raftlog.Index(from)
			}
			if to != 0 {
				hi = raftlog.Index(to)
			}
			it, err := log.Scan(lo, hi)
			if err != nil {
				return err
			}
			defer it.Close()

			for it.Next() {
				e := it.Entry()
				fmt.Printf("%d@%d: %q\n", e.Index, e.Term, e.Command)
			}
			return it.Err()
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 0, "first index to scan (default: first entry)")
	cmd.Flags().Uint64Var(&to, "to", 0, "last index to scan (default: last entry)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print log and engine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cleanup, err := openLog()
			if err != nil {
				return err
			}
			defer cleanup()

			term, vote := log.TermVote()
			lastIndex, lastTerm := log.LastIndex()
			commitIndex, commitTerm := log.CommitIndex()
			status, err := log.Status()
			if err != nil {
				return err
			}

			fmt.Printf("term=%d vote=%v\n", term, vote)
			fmt.Printf("last=%d@%d commit=%d@%d\n", lastIndex, lastTerm, commitIndex, commitTerm)
			fmt.Printf("engine=%s keys=%d disk_bytes=%d\n", status.Name, status.KeyCount, status.DiskSize)
			return nil
		},
	}
}
