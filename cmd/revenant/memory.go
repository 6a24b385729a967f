package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hollowlabs/revenant/config"
	"github.com/hollowlabs/revenant/memory"
)

var (
	searchLimit     int
	searchThreshold float64
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Administer the memory store",
}

// withStore loads config, opens the store, runs fn, and closes it.
func withStore(fn func(ctx context.Context, store memory.Store) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return fn(ctx, store)
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store memory.Store) error {
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over stored items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store memory.Store) error {
			results, err := store.SemanticSearch(ctx, args[0], searchThreshold, searchLimit)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"results": results, "count": len(results)})
		})
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored item",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store memory.Store) error {
			if err := store.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("memory cleared")
			return nil
		})
	},
}

var memoryBackupCmd = &cobra.Command{
	Use:   "backup <dir>",
	Short: "Copy the store files into a backup directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store memory.Store) error {
			if err := store.Backup(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("backed up to %s\n", args[0])
			return nil
		})
	},
}

var memoryRestoreCmd = &cobra.Command{
	Use:   "restore <dir>",
	Short: "Restore the store from a backup directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store memory.Store) error {
			if err := store.Restore(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("restored from %s\n", args[0])
			return nil
		})
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	memorySearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", memory.DefaultSearchLimit, "Maximum results")
	memorySearchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", memory.DefaultThreshold, "Minimum similarity score")

	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memorySearchCmd)
	memoryCmd.AddCommand(memoryClearCmd)
	memoryCmd.AddCommand(memoryBackupCmd)
	memoryCmd.AddCommand(memoryRestoreCmd)
}
