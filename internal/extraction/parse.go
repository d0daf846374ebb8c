package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dateFormats are the layouts models commonly emit despite being asked for
// ISO 8601. The CJK layout matters: Chinese VAT invoices print dates as
// 2024年03月20日 and smaller models echo that verbatim.
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"2006年01月02日",
	"2006年1月2日",
}

// parseInvoiceJSON extracts the InvoiceData object from raw model output.
// Models wrap JSON in markdown fences or prose more often than not, so we
// cut out the outermost brace pair before unmarshaling.
func parseInvoiceJSON(text string) (*InvoiceData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in model output")
	}
	text = text[start : end+1]

	var data InvoiceData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling invoice json: %w", err)
	}

	data.Date = normalizeDate(data.Date)
	data.Seller = strings.TrimSpace(data.Seller)
	data.InvoiceNumber = strings.TrimSpace(data.InvoiceNumber)
	data.TaxID = strings.TrimSpace(data.TaxID)
	data.Currency = strings.ToUpper(strings.TrimSpace(data.Currency))

	return &data, nil
}

// normalizeDate coerces a model-emitted date to YYYY-MM-DD. An
// unrecognizable date is passed through trimmed rather than guessed at; the
// result row keeps whatever the model saw.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateFormats {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return raw
}
