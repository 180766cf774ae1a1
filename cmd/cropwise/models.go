package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "Inspect the configured crop classifiers",
	}

	modelsListCmd = &cobra.Command{
		Use:   "list",
		Short: "Load the model manifest and list the available classifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			primary := registry.PrimaryName()
			for _, name := range registry.Names() {
				marker := " "
				if name == primary {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, name)
			}
			return nil
		},
	}
)

func init() {
	modelsCmd.AddCommand(modelsListCmd)
}
