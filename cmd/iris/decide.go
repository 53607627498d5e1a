package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/iris/internal/app"
	"github.com/Ramsey-B/iris/pkg/models"
)

func setupDecideCommand(rt *cliState) *cobra.Command {
	var (
		entity models.EntityDescriptor
		force  bool
		topK   int
	)

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Build the index in-process and decide a single entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, stop, err := startApp(cmd.Context(), rt, app.Options{WarmIndex: true})
			if err != nil {
				return err
			}
			defer stop()

			result, err := a.Service().Decide(cmd.Context(), entity, force, topK)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&entity.Name, "name", "", "Entity name")
	cmd.Flags().StringVar(&entity.Type, "type", "", "Entity type, e.g. ORG")
	cmd.Flags().StringVar(&entity.Definition, "definition", "", "Short description of the entity")
	cmd.Flags().StringSliceVar(&entity.Aliases, "alias", nil, "Alias, repeatable")
	cmd.Flags().BoolVar(&force, "force", false, "Never return ambiguous")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Candidates to score (0 uses the configured default)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
