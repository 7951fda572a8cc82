package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"blackout/api/internal/store"
	"blackout/api/internal/syncer"
)

// newWatchCmd follows a live session straight from the session store,
// printing a line whenever the document changes. Useful for keeping an
// eye on a room without holding a browser open.
func newWatchCmd(cfg *Config) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <code>",
		Short: "Follow a live session from the session store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.ToUpper(args[0])

			redisStore, err := store.NewRedisStore(cfg.redisURL, 0)
			if err != nil {
				return err
			}
			defer redisStore.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := syncer.New(redisStore, code, syncer.Options{PollInterval: interval})
			go client.Run(ctx)
			snapshots := client.Subscribe()
			commands := client.AdminCommands()

			var lastVersion int64 = -1
			for {
				select {
				case <-ctx.Done():
					return nil
				case ac := <-commands:
					fmt.Printf("admin #%d %s %q\n", ac.ID, ac.Type, ac.Payload)
				case snap := <-snapshots:
					if !snap.Connected {
						fmt.Println("store unreachable, retrying")
						continue
					}
					if snap.Version == lastVersion {
						continue
					}
					lastVersion = snap.Version
					line := fmt.Sprintf("v%d step %d/%d players %d",
						snap.Version, snap.State.Step, snap.State.FinalStep, len(snap.State.Players))
					if snap.State.Proposal != nil {
						line += fmt.Sprintf(" proposal(%s)", snap.State.Proposal.PlayerName)
					}
					if snap.State.Validation != nil {
						line += fmt.Sprintf(" vote(%d ready)", len(snap.State.Validation.ReadyPlayers))
					}
					if snap.State.Complete() {
						line += " COMPLETE"
					}
					fmt.Println(line)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval (env: GAMECTL_INTERVAL)")
	return cmd
}
