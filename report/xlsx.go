// Package report exports pay-period summaries for the external payroll step.
package report

import (
	"fmt"
	"io"

	"github.com/warp/timeclock/timeclock"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Attendance"

// Header is the first row of the exported sheet.
var Header = []any{
	"Date", "AM In", "AM Out", "PM In", "PM Out", "OT In", "OT Out",
	"OT Allowed", "Paid", "Regular", "Deduct", "OT", "Worked",
}

// WriteXLSX writes one row per day followed by a totals row. Minutes are
// written as integers; the totals row adds hours columns.
func WriteXLSX(w io.Writer, sum timeclock.PeriodSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, day := range sum.Days {
		rec, m := day.Record, day.Metrics
		values := []any{rec.WorkDate.String()}
		for _, slot := range timeclock.AllSlots {
			values = append(values, slotCell(rec.Get(slot)))
		}
		values = append(values, rec.OTAllowed, rec.Paid, m.Regular, m.Deduct, m.OT, m.Worked)
		if err := setRow(f, row, values); err != nil {
			return err
		}
		row++
	}

	totals := []any{"Total", "", "", "", "", "", "", "", "",
		sum.Totals.Regular, sum.Totals.Deduct, sum.Totals.OT, sum.Totals.Worked}
	if err := setRow(f, row, totals); err != nil {
		return err
	}
	hours := []any{"Hours", "", "", "", "", "", "", "", "",
		sum.RegularHours().String(), sum.DeductHours().String(), sum.OTHours().String(), sum.RegularHours().String()}
	if err := setRow(f, row+1, hours); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func slotCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
