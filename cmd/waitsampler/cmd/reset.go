package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the collector's profile table",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := targetClient()
		if err != nil {
			return err
		}
		if err := client.ResetProfile(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("profile reset")
		return nil
	},
}
