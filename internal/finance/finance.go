// Package finance holds the domain types shared by the forecasting and
// receipt-extraction services, plus the data-access contracts they consume.
package finance

import "context"

// Transaction is a single signed ledger entry. Dates are ISO-8601 strings
// (YYYY-MM-DD) throughout; the storage layer keeps them that way.
type Transaction struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"-"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"` // "income" or "expense"
}

// MonthlyAverages summarises income and spend over a trailing window.
type MonthlyAverages struct {
	AvgIncome   float64 `json:"avg_monthly_income"`
	AvgExpenses float64 `json:"avg_monthly_expenses"`
	AvgNet      float64 `json:"avg_monthly_net"`
}

// ReceiptItem is one line item on an extracted receipt.
type ReceiptItem struct {
	ItemName string  `json:"item_name"`
	ItemCost float64 `json:"item_cost"`
}

// ExtractedReceipt is the normalized result of a receipt-image extraction.
// After normalization every field is present and type-correct.
type ExtractedReceipt struct {
	Date       string        `json:"date"`
	Currency   string        `json:"currency"`
	VendorName string        `json:"vendor_name"`
	Items      []ReceiptItem `json:"receipt_items"`
	Tax        float64       `json:"tax"`
	Total      float64       `json:"total"`
}

// SavedReceipt is an ExtractedReceipt after persistence.
type SavedReceipt struct {
	ID int64 `json:"id"`
	ExtractedReceipt
	ImageURL string `json:"image_url"`
}

// ForecastMetadata describes the window a forecast covers.
type ForecastMetadata struct {
	UserID         int64   `json:"user_id"`
	ForecastStart  string  `json:"forecast_start"`
	ForecastEnd    string  `json:"forecast_end"`
	CurrentBalance float64 `json:"current_balance"`
	ForecastDays   int     `json:"forecast_days"`
}

// ForecastResult is immutable once produced.
type ForecastResult struct {
	ForecastText string           `json:"forecast_text"`
	Metadata     ForecastMetadata `json:"metadata"`
}

// DataAccessFacade is the read-only query surface the forecast tools
// ground themselves on. Implementations are per-user.
type DataAccessFacade interface {
	// GetTransactions returns transactions, optionally bounded by
	// inclusive ISO-8601 dates; empty strings mean unbounded.
	GetTransactions(ctx context.Context, startDate, endDate string) ([]Transaction, error)

	// GetBalance returns the stored initial balance plus the signed sum
	// of all transactions.
	GetBalance(ctx context.Context) (float64, error)

	// MonthlyAverages computes averages over the trailing 30*months days.
	MonthlyAverages(ctx context.Context, months int) (MonthlyAverages, error)

	// RecurringTransactions groups transactions by description and keeps
	// groups with at least minOccurrences entries.
	RecurringTransactions(ctx context.Context, minOccurrences int) (map[string][]Transaction, error)
}

// PersistenceSink stores a normalized receipt. SaveReceipt is atomic:
// either the receipt row and all its items are written, or nothing is.
type PersistenceSink interface {
	SaveReceipt(ctx context.Context, r ExtractedReceipt, imageURL string) (SavedReceipt, error)
}
