package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var phrase bool

	cmd := &cobra.Command{
		Use:   "search <path> <query>...",
		Short: "Index a path, then search it",
		Long: `Index the given path, wait for indexing to finish, and print the
files matching the query. With --phrase the query terms must appear at
consecutive positions; otherwise a single token is looked up.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			root := args[0]
			query := strings.Join(args[1:], " ")

			svc, bar, err := newService(cfg, []string{root})
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			svc.Index(root)

			var matches []string
			if phrase {
				matches, err = svc.QueryPhrase(cmd.Context(), query)
			} else {
				matches, err = svc.Query(cmd.Context(), query)
			}
			if err != nil {
				return err
			}
			_ = bar.Finish()

			if len(matches) == 0 {
				fmt.Println("\nNo matches")
				return nil
			}
			fmt.Println()
			for _, path := range matches {
				fmt.Println(path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&phrase, "phrase", false, "Match query terms as an exact phrase")
	return cmd
}
