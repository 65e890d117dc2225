package export

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/hrms-lite/hrms/internal/model"
)

// SheetName is the worksheet holding the employee rows.
const SheetName = "Employees"

var headers = []string{"Employee ID", "Full Name", "Email", "Department", "Created At"}

// WriteEmployees writes an xlsx workbook with one row per employee.
func WriteEmployees(w io.Writer, employees []model.Employee) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	for i, h := range headers {
		if err := setCell(f, i+1, 1, h); err != nil {
			return err
		}
	}
	for r, e := range employees {
		row := r + 2
		values := []any{e.EmployeeID, e.FullName, e.Email, e.Department, e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")}
		for c, v := range values {
			if err := setCell(f, c+1, row, v); err != nil {
				return err
			}
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return errors.Wrap(err, "cell name")
	}
	return errors.Wrapf(f.SetCellValue(SheetName, cell, value), "setting %s", cell)
}
