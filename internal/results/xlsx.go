package results

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Invoices"

var xlsxHeaders = []string{
	"Job ID",
	"Captured At",
	"Status",
	"Invoice Number",
	"Seller",
	"Date",
	"Amount",
	"Currency",
	"Tax ID",
	"Failure Reason",
	"Shot Path",
}

// XLSXSink appends one worksheet row per result. The workbook is reopened
// and saved on every append: slower than keeping it open, but the file on
// disk is always complete, and back-office clerks open it while the daemon
// runs. A mutex serializes workers; the critical section holds only the
// spreadsheet write, never recognition latency.
type XLSXSink struct {
	path string
	mu   sync.Mutex

	// Save retries cover the file being transiently locked by a spreadsheet
	// application holding it open.
	retries int
	backoff time.Duration
}

// NewXLSXSink creates a sink writing to the given workbook path. The file
// is created with a header row on first append.
func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{
		path:    path,
		retries: 3,
		backoff: 250 * time.Millisecond,
	}
}

// Append adds one row for the result, retrying the save a bounded number of
// times with backoff before giving up.
func (x *XLSXSink) Append(result *Result) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, created, err := x.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("reading sheet: %w", err)
	}
	row := len(rows) + 1

	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheetName, cell, v)
	}

	write(1, result.JobID)
	write(2, result.CapturedAt.Format(time.RFC3339))
	write(3, string(result.Status))
	if result.Record != nil {
		write(4, result.Record.InvoiceNumber)
		write(5, result.Record.Seller)
		write(6, result.Record.Date)
		write(7, result.Record.Amount)
		write(8, result.Record.Currency)
		write(9, result.Record.TaxID)
	}
	write(10, result.FailureReason)
	write(11, result.ShotPath)

	var saveErr error
	for attempt := 0; attempt <= x.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(x.backoff * time.Duration(1<<(attempt-1)))
			slog.Warn("retrying workbook save", "path", x.path, "attempt", attempt, "error", saveErr)
		}
		if created {
			saveErr = f.SaveAs(x.path)
		} else {
			saveErr = f.Save()
		}
		if saveErr == nil {
			return nil
		}
	}
	return fmt.Errorf("saving workbook after %d attempts: %w", x.retries+1, saveErr)
}

func (x *XLSXSink) openOrCreate() (*excelize.File, bool, error) {
	if _, err := os.Stat(x.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, false, fmt.Errorf("checking workbook: %w", err)
		}
		f := excelize.NewFile()
		if _, err := f.NewSheet(sheetName); err != nil {
			return nil, false, fmt.Errorf("creating sheet: %w", err)
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, false, fmt.Errorf("removing default sheet: %w", err)
		}
		for i, h := range xlsxHeaders {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(sheetName, cell, h)
		}
		_ = f.SetColWidth(sheetName, "B", "B", 22)
		_ = f.SetColWidth(sheetName, "D", "E", 26)
		_ = f.SetColWidth(sheetName, "J", "K", 40)
		return f, true, nil
	}

	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return nil, false, fmt.Errorf("opening workbook: %w", err)
	}
	return f, false, nil
}
