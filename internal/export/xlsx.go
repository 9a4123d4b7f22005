package export

import (
	"github.com/xuri/excelize/v2"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

const findingsSheet = "Findings"

func writeXLSX(path string, records []domain.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", findingsSheet); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(findingsSheet)
	if err != nil {
		return err
	}

	columns := Columns(records)
	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for n, r := range records {
		row := make([]interface{}, len(columns))
		for i, col := range columns {
			row[i] = cellValue(r[col])
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
