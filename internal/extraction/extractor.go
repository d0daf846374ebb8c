// Package extraction turns a captured document still into structured
// invoice fields via a vision-capable LLM.
package extraction

import "context"

// InvoiceData contains the fields extracted from one invoice or receipt.
type InvoiceData struct {
	InvoiceNumber string  `json:"invoice_number"`
	Seller        string  `json:"seller"`
	Date          string  `json:"date"` // ISO 8601
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	TaxID         string  `json:"tax_id"`
}

// Extractor defines the recognition collaborator. Implementations treat the
// model as a black box; the caller bounds latency through ctx.
type Extractor interface {
	// ExtractInvoice analyzes an invoice image (or PDF) and extracts the
	// structured fields.
	ExtractInvoice(ctx context.Context, imageData []byte, contentType string) (*InvoiceData, error)
	// Close releases model client resources.
	Close() error
}

// invoiceScanPrompt is shared by all model backends.
const invoiceScanPrompt = `You are analyzing a financial document: an invoice or a purchase receipt. Carefully read all text in the image and extract the following information:

1. **Invoice Number**: the document's invoice or receipt number, usually near the top and labeled "Invoice No", "No.", or a long digit string.

2. **Seller**: the issuing business name, usually the most prominent text in the header.

3. **Date**: the issue or transaction date, converted to ISO 8601 format (YYYY-MM-DD).

4. **Total Amount**: the final total or amount due, as a plain number (e.g. 1280.50).

5. **Currency**: the ISO 4217 code of the amount (e.g. CNY, USD, EUR).

6. **Tax ID**: the seller's tax identification number if printed, otherwise null.

Return ONLY valid JSON in this exact format:
{
  "invoice_number": "...",
  "seller": "...",
  "date": "YYYY-MM-DD",
  "amount": 0.00,
  "currency": "...",
  "tax_id": "..."
}

Important:
- The amount must be a number, not a string
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
