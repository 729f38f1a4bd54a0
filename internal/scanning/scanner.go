package scanning

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnreadable is returned when the model reports that the image is blurry,
// illegible, or not a receipt at all.
var ErrUnreadable = errors.New("receipt image cannot be read")

// cannotRead is the sentinel value the model puts in the "error" field
const cannotRead = "cannot_read"

// LineItem is one article extracted from a receipt
type LineItem struct {
	Name      string  `json:"nomArticle"`
	UnitPrice float64 `json:"prixUnitaire"`
}

// Result contains the articles extracted from a receipt
type Result struct {
	Articles []LineItem `json:"articles"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt sends a base64 encoded receipt image to the model and
	// returns the extracted articles. ErrUnreadable is returned when the
	// model cannot interpret the image.
	ScanReceipt(ctx context.Context, base64Image string) (*Result, error)
	// Close closes the scanner and releases resources
	Close() error
}

// APIError is returned by providers when the upstream API answers with a
// non-success status code.
type APIError struct {
	Provider   string
	StatusCode int
	// Body is the raw response body, kept for diagnostics
	Body []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, string(e.Body))
}
