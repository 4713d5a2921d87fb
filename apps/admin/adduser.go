package main

import (
	"context"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trezcool/kazi/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var nu user.NewUser
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user account; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword(int(syscall.Stdin))
			if err != nil {
				return err
			}
			nu.Password, nu.PasswordConfirm = pwd, pwd
			usr, err := cli.addUser(cmd.Context(), nu)
			if err != nil {
				return err
			}
			cli.printf("created user %d <%s>\n", usr.ID, usr.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&nu.Name, "name", "", "full name")
	cmd.Flags().StringVar(&nu.Email, "email", "", "email address")
	cmd.Flags().BoolVar(&nu.IsAdmin, "admin", false, "grant administrator rights")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, cli.describe(err)
	}
	return cli.usrSvc.Create(ctx, nu)
}
