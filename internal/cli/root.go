package cli

import (
	"ai-review-be/internal/cli/commands"

	"github.com/spf13/cobra"
)

func Execute() error {
	return NewRoot().Execute()
}

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "review",
		Short:         "Run and follow manuscript reviews",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		commands.RunCmd(),
		commands.WatchCmd(),
		commands.ModelsCmd(),
		commands.PruneCmd(),
	)
	return root
}
