package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (cli *commandLine) loadCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loadcatalog FILE",
		Short: "Import roles, domains, components and academic years from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "opening catalog file")
			}
			defer f.Close()

			report, err := cli.catalogSvc.LoadCatalog(cmd.Context(), f, cli.staffSvc)
			if err != nil {
				return err
			}
			cli.printf("created %d domain(s), %d component(s), %d academic year(s)\n",
				report.Domains, report.Components, report.AcademicYears)
			return nil
		},
	}
}
