package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/staff"
)

type addStaffOpts struct {
	email      string
	department string
	role       string
	ns         staff.NewStaff
}

func (cli *commandLine) addStaffCmd() *cobra.Command {
	var opts addStaffOpts
	cmd := &cobra.Command{
		Use:   "addstaff",
		Short: "Create the staff profile of an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.addStaff(cmd.Context(), opts)
			if err != nil {
				return err
			}
			cli.printf("created staff %d (%s) in %s\n", s.ID, s.FullName(), opts.department)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.email, "email", "", "email of the user account")
	f.StringVar(&opts.department, "department", "", "department name; created when missing")
	f.StringVar(&opts.role, "role", "", "role name; created when missing")
	f.StringVar(&opts.ns.FirstName, "first-name", "", "first name")
	f.StringVar(&opts.ns.MiddleName, "middle-name", "", "middle name")
	f.StringVar(&opts.ns.LastName, "last-name", "", "last name")
	f.StringVar(&opts.ns.StaffNo, "staff-no", "", "staff number")
	f.BoolVar(&opts.ns.IsHOD, "hod", false, "head of department")
	f.BoolVar(&opts.ns.IsCoordinator, "coordinator", false, "coordinator")
	f.BoolVar(&opts.ns.IsPrincipal, "principal", false, "principal")
	for _, name := range []string{"email", "department", "first-name", "last-name", "staff-no"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (cli *commandLine) department(ctx context.Context, name string) (staff.Department, error) {
	name = core.CleanString(name)
	depts, err := cli.staffSvc.QueryDepartments(ctx)
	if err != nil {
		return staff.Department{}, err
	}
	for _, d := range depts {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	nd := staff.NewDepartment{Name: name}
	if err = nd.Validate(cli.validate); err != nil {
		return staff.Department{}, cli.describe(err)
	}
	return cli.staffSvc.CreateDepartment(ctx, nd)
}

func (cli *commandLine) addStaff(ctx context.Context, opts addStaffOpts) (staff.Staff, error) {
	usr, err := cli.usrSvc.GetByEmail(ctx, opts.email)
	if err != nil {
		return staff.Staff{}, errors.Wrapf(err, "looking up %q", opts.email)
	}
	dept, err := cli.department(ctx, opts.department)
	if err != nil {
		return staff.Staff{}, err
	}

	ns := opts.ns
	ns.UserID = usr.ID
	ns.DepartmentID = dept.ID
	if core.CleanString(opts.role) != "" {
		role, err := cli.staffSvc.EnsureRole(ctx, opts.role)
		if err != nil {
			return staff.Staff{}, err
		}
		ns.RoleID = role.ID
	}

	if err = ns.Validate(ctx, cli.validate, cli.staffSvc); err != nil {
		return staff.Staff{}, cli.describe(err)
	}
	return cli.staffSvc.Onboard(ctx, ns)
}
