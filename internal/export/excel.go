package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/example/tablebook/internal/booking"
)

const sheetName = "Bookings"

var columns = []string{"Reference", "Restaurant", "Date", "Time", "Party size", "Status", "Special requests", "Customer"}

// Bookings writes recs as a single-sheet xlsx workbook to w.
func Bookings(w io.Writer, recs []booking.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRow(f, 1, toCells(columns)); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		end, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheetName, "A1", end, style)
	}

	for i, r := range recs {
		row := []any{
			r.Reference,
			restaurantLabel(r),
			r.Date,
			booking.FormatTime(r.Time),
			r.PartySize,
			string(r.Status),
			r.SpecialRequests,
			r.CustomerName,
		}
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(sheetName, "A", "H", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func restaurantLabel(r booking.Record) string {
	if r.RestaurantName != "" {
		return r.RestaurantName
	}
	return r.Microsite
}

func writeRow(f *excelize.File, row int, vals []any) error {
	for i, v := range vals {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}
	return nil
}

func toCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
