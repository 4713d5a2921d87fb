package main

import (
	"syscall"

	"github.com/spf13/cobra"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password; the new password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword(int(syscall.Stdin))
			if err != nil {
				return err
			}
			if _, err = cli.usrSvc.ResetPassword(cmd.Context(), email, pwd); err != nil {
				return cli.describe(err)
			}
			cli.printf("password updated\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
