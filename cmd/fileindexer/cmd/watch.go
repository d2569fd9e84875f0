package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <path>...",
		Short: "Index the given paths and keep the index current until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			svc, bar, err := newService(cfg, args)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			svc.Index(args...)
			if err := svc.Wait(cmd.Context()); err != nil {
				return err
			}
			_ = bar.Finish()

			if err := svc.StartWatching(args...); err != nil {
				return err
			}
			fmt.Println("\nWatching for changes, Ctrl-C to stop")

			<-cmd.Context().Done()
			fmt.Println("Stopping")
			return nil
		},
	}
	return cmd
}
