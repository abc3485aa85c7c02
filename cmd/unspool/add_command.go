package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"unspool/internal/container"
	"unspool/internal/fingerprint"
	"unspool/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Add a container file to the processing queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}
			if !container.SupportedExtension(absPath) {
				return fmt.Errorf("unsupported file extension %q", filepath.Ext(absPath))
			}

			out := cmd.OutOrStdout()
			if client, dialErr := ctx.dialClient(); dialErr == nil {
				defer client.Close()
				resp, err := client.QueueAdd(absPath)
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("empty response from daemon")
				}
				fmt.Fprintf(out, "Queued %s as item #%d\n", filepath.Base(absPath), resp.Item.ID)
				return nil
			}

			item, err := addDirectly(cmd, ctx, absPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Queued %s as item #%d\n", filepath.Base(absPath), item.ID)
			return nil
		},
	}
}

// addDirectly enqueues against the store when the daemon is down, applying
// the same fingerprint dedup the daemon would.
func addDirectly(cmd *cobra.Command, ctx *commandContext, absPath string) (*queue.Item, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	fp, err := fingerprint.Source(absPath)
	if err != nil {
		return nil, fmt.Errorf("fingerprint source file: %w", err)
	}
	if existing, err := store.FindBySourceFingerprint(cmd.Context(), fp); err == nil && existing != nil {
		return existing, nil
	}
	item, err := store.NewPending(cmd.Context(), absPath, fp)
	if err != nil {
		return nil, fmt.Errorf("enqueue file: %w", err)
	}
	return item, nil
}
