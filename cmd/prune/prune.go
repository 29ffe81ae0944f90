// Package prune implements the one-shot storage cleanup command.
package prune

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/datastore"
	"github.com/tsanev/camguard-go/internal/diskguard"
)

// Command returns the prune subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete oldest recordings until storage is back under the quota",
		RunE: func(*cobra.Command, []string) error {
			return runPrune(settings)
		},
	}
	return cmd
}

func runPrune(settings *conf.Settings) error {
	if settings.Storage.LimitBytes <= 0 {
		fmt.Println("No storage limit configured, nothing to prune.")
		return nil
	}

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("pruning requires the event catalog, enable output.sqlite")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	guard := diskguard.New(settings.Storage.Path, settings.Storage.LimitBytes,
		settings.Storage.Action, store, nil)

	before, err := guard.Usage()
	if err != nil {
		return err
	}
	if err := guard.Prune(); err != nil {
		return err
	}
	after, err := guard.Usage()
	if err != nil {
		return err
	}

	fmt.Printf("Storage usage: %d -> %d bytes (limit %d)\n", before, after, settings.Storage.LimitBytes)
	guard.LogDiskSpace()
	return nil
}
