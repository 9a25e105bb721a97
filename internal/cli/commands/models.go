package commands

import (
	"fmt"
	"text/tabwriter"

	"ai-review-be/internal/config"
	"ai-review-be/internal/entity"

	"github.com/spf13/cobra"
)

func ModelsCmd() *cobra.Command {
	var registryPath string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Show which model each agent uses and what it costs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if registryPath == "" {
				registryPath = config.Load().Ai.ModelRegistryPath
			}
			registry, err := config.LoadRegistry(registryPath)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tTRACK\tMODEL\tINPUT $/1M\tOUTPUT $/1M")
			for _, agent := range entity.AllAgents() {
				model := registry.ModelFor(agent)
				cost := registry.Cost(model)
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\n", agent, agent.Track(), model, cost.Input, cost.Output)
			}
			for _, b := range registry.Panel() {
				fmt.Fprintf(w, "panel:%s\t-\t%s\t-\t-\n", b.Name, b.Model)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&registryPath, "registry", "", "Model registry YAML (defaults to the built-in one)")
	return cmd
}
