// Package storage implements the data-access facade and the receipt
// persistence sink on SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jthornhill/finagent/internal/finance"
)

// ErrPersistence marks storage failures surfaced to callers. Writes that
// fail roll back completely; no partial record is ever observable.
var ErrPersistence = errors.New("persistence failure")

type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at dbPath and runs
// migrations.
func Open(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// EnsureUser creates a user row if absent and returns its id.
func (r *Repository) EnsureUser(ctx context.Context, username string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup user: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (username, password) VALUES (?, '')`, username)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

// ForUser returns the per-user view implementing finance.DataAccessFacade
// and finance.PersistenceSink.
func (r *Repository) ForUser(userID int64) *UserStore {
	return &UserStore{db: r.db, userID: userID, now: time.Now}
}

// UserStore scopes all queries to one user.
type UserStore struct {
	db     *sql.DB
	userID int64
	now    func() time.Time
}

// GetTransactions implements finance.DataAccessFacade. Empty date bounds
// mean unbounded; bounds are inclusive ISO-8601 strings.
func (s *UserStore) GetTransactions(ctx context.Context, startDate, endDate string) ([]finance.Transaction, error) {
	query := `SELECT id, date, description, amount, type FROM transactions WHERE user_id = ?`
	args := []any{s.userID}
	if startDate != "" {
		query += ` AND date >= ?`
		args = append(args, startDate)
	}
	if endDate != "" {
		query += ` AND date <= ?`
		args = append(args, endDate)
	}
	query += ` ORDER BY date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []finance.Transaction
	for rows.Next() {
		t := finance.Transaction{UserID: s.userID}
		if err := rows.Scan(&t.ID, &t.Date, &t.Description, &t.Amount, &t.Type); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// GetBalance implements finance.DataAccessFacade: stored initial balance
// plus all income minus all expenses.
func (s *UserStore) GetBalance(ctx context.Context) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT balance FROM initial_balances WHERE user_id = ?), 0)
		     + COALESCE((SELECT SUM(CASE WHEN type = 'income' THEN amount ELSE -amount END)
		                   FROM transactions WHERE user_id = ?), 0)`,
		s.userID, s.userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

// MonthlyAverages implements finance.DataAccessFacade over the trailing
// 30*months days.
func (s *UserStore) MonthlyAverages(ctx context.Context, months int) (finance.MonthlyAverages, error) {
	if months <= 0 {
		months = 1
	}
	cutoff := s.now().AddDate(0, 0, -30*months).Format(time.DateOnly)

	var totalIncome, totalExpenses float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN type = 'expense' THEN amount ELSE 0 END), 0)
		  FROM transactions WHERE user_id = ? AND date >= ?`,
		s.userID, cutoff).Scan(&totalIncome, &totalExpenses)
	if err != nil {
		return finance.MonthlyAverages{}, fmt.Errorf("query monthly totals: %w", err)
	}

	avgIncome := totalIncome / float64(months)
	avgExpenses := totalExpenses / float64(months)
	return finance.MonthlyAverages{
		AvgIncome:   avgIncome,
		AvgExpenses: avgExpenses,
		AvgNet:      avgIncome - avgExpenses,
	}, nil
}

// RecurringTransactions implements finance.DataAccessFacade: groups the
// user's transactions by description and keeps groups of at least
// minOccurrences.
func (s *UserStore) RecurringTransactions(ctx context.Context, minOccurrences int) (map[string][]finance.Transaction, error) {
	if minOccurrences <= 0 {
		minOccurrences = 2
	}
	all, err := s.GetTransactions(ctx, "", "")
	if err != nil {
		return nil, err
	}

	byDesc := make(map[string][]finance.Transaction)
	for _, t := range all {
		byDesc[t.Description] = append(byDesc[t.Description], t)
	}

	recurring := make(map[string][]finance.Transaction)
	for desc, txs := range byDesc {
		if len(txs) >= minOccurrences {
			recurring[desc] = txs
		}
	}
	return recurring, nil
}

// AddTransaction records a signed ledger entry for the user.
func (s *UserStore) AddTransaction(ctx context.Context, t finance.Transaction) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, date, description, amount, type) VALUES (?, ?, ?, ?, ?)`,
		s.userID, t.Date, t.Description, t.Amount, t.Type)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

// SetInitialBalance stores or replaces the user's starting balance.
func (s *UserStore) SetInitialBalance(ctx context.Context, balance float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO initial_balances (user_id, balance) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET balance = excluded.balance`,
		s.userID, balance)
	if err != nil {
		return fmt.Errorf("set initial balance: %w", err)
	}
	return nil
}

// SaveReceipt implements finance.PersistenceSink. The receipt row and
// all its items are written in one transaction.
func (s *UserStore) SaveReceipt(ctx context.Context, rec finance.ExtractedReceipt, imageURL string) (finance.SavedReceipt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return finance.SavedReceipt{}, fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO receipt_details (user_id, date, currency, vendor_name, tax, total, image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.userID, rec.Date, rec.Currency, rec.VendorName, rec.Tax, rec.Total, imageURL)
	if err != nil {
		return finance.SavedReceipt{}, fmt.Errorf("%w: insert receipt: %v", ErrPersistence, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return finance.SavedReceipt{}, fmt.Errorf("%w: receipt id: %v", ErrPersistence, err)
	}

	for _, item := range rec.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO receipt_items (receipt_id, item_name, item_cost) VALUES (?, ?, ?)`,
			id, item.ItemName, item.ItemCost); err != nil {
			return finance.SavedReceipt{}, fmt.Errorf("%w: insert item: %v", ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return finance.SavedReceipt{}, fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}

	slog.InfoContext(ctx, "Receipt saved",
		"id", id, "user_id", s.userID, "vendor", rec.VendorName, "total", rec.Total, "items", len(rec.Items))

	return finance.SavedReceipt{ID: id, ExtractedReceipt: rec, ImageURL: imageURL}, nil
}

// GetReceipt loads a saved receipt with its items.
func (s *UserStore) GetReceipt(ctx context.Context, id int64) (finance.SavedReceipt, error) {
	var out finance.SavedReceipt
	err := s.db.QueryRowContext(ctx, `
		SELECT id, date, currency, vendor_name, tax, total, image_url
		  FROM receipt_details WHERE id = ? AND user_id = ?`, id, s.userID).
		Scan(&out.ID, &out.Date, &out.Currency, &out.VendorName, &out.Tax, &out.Total, &out.ImageURL)
	if err != nil {
		return out, fmt.Errorf("query receipt: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_name, item_cost FROM receipt_items WHERE receipt_id = ? ORDER BY id`, id)
	if err != nil {
		return out, fmt.Errorf("query receipt items: %w", err)
	}
	defer rows.Close()

	out.Items = []finance.ReceiptItem{}
	for rows.Next() {
		var item finance.ReceiptItem
		if err := rows.Scan(&item.ItemName, &item.ItemCost); err != nil {
			return out, fmt.Errorf("scan receipt item: %w", err)
		}
		out.Items = append(out.Items, item)
	}
	return out, rows.Err()
}
