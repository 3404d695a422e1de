package progress

import (
	"fmt"
	"io"

	"github.com/adaptive-reader/backend/internal/models"
	"github.com/adaptive-reader/backend/internal/rating"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

var exportHeader = []interface{}{
	"Date", "Rating", "Reading Level", "Sessions Completed", "Chunks Completed", "Avg Performance", "Avg Difficulty",
}

// WriteXLSX renders progress records as a single-sheet workbook.
func WriteXLSX(w io.Writer, records []models.ProgressRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			rec.Date.Format("2006-01-02"),
			rec.Rating,
			rating.ReadingLevel(float64(rec.Rating)),
			rec.SessionsCompleted,
			rec.ChunksCompleted,
			optional(rec.AvgPerformance),
			optional(rec.AvgDifficulty),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func optional(f *float64) interface{} {
	if f == nil {
		return ""
	}
	return *f
}
