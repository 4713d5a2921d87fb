package dashboard

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/kazi/core/staff"
)

const reportSheet = "Reflections"

var reportHeader = []interface{}{
	"Reflection", "Staff", "Staff No", "Department", "Created",
	"Domains", "Strengths", "Growths", "Growth Plans", "Observed Plans",
}

// Export writes the in-scope reflection report of actor to w as an XLSX workbook.
func (svc *Service) Export(ctx context.Context, actor *staff.Staff, w io.Writer) error {
	rows, err := svc.Report(ctx, actor)
	if err != nil {
		return err
	}
	return WriteReport(rows, w)
}

// WriteReport renders rows as an XLSX workbook with a header line.
func WriteReport(rows []ReportRow, w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	if err := f.SetSheetRow(reportSheet, "A1", &reportHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err = f.SetRowStyle(reportSheet, 1, 1, style); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		line := []interface{}{
			r.ReflectionID, r.StaffName, r.StaffNo, r.DepartmentName, r.CreatedAt.Format("2006-01-02 15:04"),
			r.Domains, r.Strengths, r.Growths, r.GrowthPlans, r.ObservedPlans,
		}
		if err = f.SetSheetRow(reportSheet, cell, &line); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}

	if _, err = f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
