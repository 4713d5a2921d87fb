package main

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/kazi/core/catalog"
)

func (cli *commandLine) setYearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setyear START END",
		Short: "Make START/END the current academic year, creating it when missing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ny catalog.NewAcademicYear
			var err error
			if ny.StartYear, err = strconv.Atoi(args[0]); err != nil {
				return errors.Errorf("start year must be a number (got %q)", args[0])
			}
			if ny.EndYear, err = strconv.Atoi(args[1]); err != nil {
				return errors.Errorf("end year must be a number (got %q)", args[1])
			}
			ay, err := cli.setYear(cmd.Context(), ny)
			if err != nil {
				return err
			}
			cli.printf("current academic year: %d/%d\n", ay.StartYear, ay.EndYear)
			return nil
		},
	}
}

func (cli *commandLine) setYear(ctx context.Context, ny catalog.NewAcademicYear) (catalog.AcademicYear, error) {
	if err := ny.Validate(cli.validate); err != nil {
		return catalog.AcademicYear{}, cli.describe(err)
	}
	years, err := cli.catalogSvc.QueryAcademicYears(ctx)
	if err != nil {
		return catalog.AcademicYear{}, err
	}
	for _, ay := range years {
		if ay.StartYear == ny.StartYear && ay.EndYear == ny.EndYear {
			return cli.catalogSvc.SetCurrentAcademicYear(ctx, ay.ID)
		}
	}
	ay, err := cli.catalogSvc.CreateAcademicYear(ctx, ny)
	if err != nil {
		return catalog.AcademicYear{}, cli.describe(err)
	}
	return cli.catalogSvc.SetCurrentAcademicYear(ctx, ay.ID)
}
