package main

import (
	"ghost.drop/internal/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var burnCmd = &cobra.Command{
	Use:   "burn <share-url|id>",
	Short: "Destroy a drop without viewing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _, err := client.ParseShareURL(args[0])
		if err != nil {
			return err
		}

		if err := client.New(serverURL).Destroy(cmd.Context(), id); err != nil {
			return err
		}

		// The server answers the same whether or not the drop existed.
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Drop destroyed.")
		return nil
	},
}
