package export

import (
	"encoding/csv"
	"os"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

func writeCSV(path string, records []domain.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	columns := Columns(records)
	writer := csv.NewWriter(file)
	if err := writer.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for _, r := range records {
		for i, col := range columns {
			row[i] = CellString(r[col])
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}
