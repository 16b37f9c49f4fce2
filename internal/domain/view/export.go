package view

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/okian/tenderwatch/internal/domain/model"
)

// CSVHeader is the first row of every export.
var CSVHeader = []string{ //nolint:gochecknoglobals // read-only
	"Title", "Organization", "Notice ID", "Value", "Currency", "Deadline", "Published Date", "Link",
}

const exportDateLayout = "2006-01-02"

// ExportFilename returns the download name for an export made at now.
func ExportFilename(now time.Time) string {
	return "BNSSG_Tenders_" + now.Format(exportDateLayout) + ".csv"
}

// WriteCSV writes one row per tender after the header. Fields containing
// quotes, commas or newlines are quoted with embedded quotes doubled.
func WriteCSV(w io.Writer, tenders []model.Tender) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range tenders {
		if err := cw.Write(csvRow(t)); err != nil {
			return fmt.Errorf("write csv row %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRow(t model.Tender) []string {
	var value, currency, deadline, published string
	if t.Value != nil {
		value = strconv.FormatFloat(t.Value.Amount, 'f', -1, 64)
		currency = t.Value.Currency
	}
	if t.Deadline != nil {
		deadline = t.Deadline.Format(exportDateLayout)
	}
	if !t.PublishedAt.IsZero() {
		published = t.PublishedAt.Format(exportDateLayout)
	}
	return []string{
		t.DisplayTitle(),
		t.BuyerName,
		t.ID,
		value,
		currency,
		deadline,
		published,
		t.Link(),
	}
}
