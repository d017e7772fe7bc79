package main

import (
	"context"
	"fmt"

	"github.com/nebari-dev/taskboard/internal/auth"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami <username>",
	Short: "Verify credentials and show the resulting identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := auth.NewVerifier(a.Store).Identify(context.Background(), args[0], password)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s), global role %s\n", user.Username, user.ID, user.GlobalRole.Name)
		return nil
	},
}
