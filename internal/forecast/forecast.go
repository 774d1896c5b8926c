// Package forecast builds grounded cash-flow forecast prompts and wraps
// the conversation result with window metadata.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jthornhill/finagent/internal/finance"
)

// ErrInvalidHorizon reports a requested horizon outside the allowed set.
var ErrInvalidHorizon = errors.New("forecast horizon must be 30, 90, or 180 days")

// Horizons is the closed set of allowed forecast day-counts.
var Horizons = []int{30, 90, 180}

// conversationRunner is the bounded tool-calling loop the assembler
// delegates to. *runner.Runner satisfies it.
type conversationRunner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Assembler produces forecasts for one user. It never touches
// persistence; all grounding data comes through the read-only facade.
type Assembler struct {
	data   finance.DataAccessFacade
	runner conversationRunner
	userID int64
	now    func() time.Time
}

func NewAssembler(data finance.DataAccessFacade, r conversationRunner, userID int64) *Assembler {
	return &Assembler{data: data, runner: r, userID: userID, now: time.Now}
}

// ValidHorizon reports whether days is one of the allowed horizons.
func ValidHorizon(days int) bool {
	for _, h := range Horizons {
		if days == h {
			return true
		}
	}
	return false
}

// Forecast runs one forecasting conversation over the given horizon and
// wraps the text result with window metadata.
func (a *Assembler) Forecast(ctx context.Context, days int) (finance.ForecastResult, error) {
	if !ValidHorizon(days) {
		return finance.ForecastResult{}, fmt.Errorf("%w: got %d", ErrInvalidHorizon, days)
	}

	balance, err := a.data.GetBalance(ctx)
	if err != nil {
		return finance.ForecastResult{}, fmt.Errorf("get balance: %w", err)
	}
	avgs, err := a.data.MonthlyAverages(ctx, 3)
	if err != nil {
		return finance.ForecastResult{}, fmt.Errorf("monthly averages: %w", err)
	}
	recurring, err := a.data.RecurringTransactions(ctx, 2)
	if err != nil {
		return finance.ForecastResult{}, fmt.Errorf("recurring transactions: %w", err)
	}

	today := a.now()
	end := today.AddDate(0, 0, days)
	prompt := buildPrompt(balance, avgs, recurring, days, end)

	text, err := a.runner.Run(ctx, prompt)
	if err != nil {
		return finance.ForecastResult{}, err
	}

	slog.InfoContext(ctx, "Forecast generated", "user_id", a.userID, "days", days, "chars", len(text))

	return finance.ForecastResult{
		ForecastText: text,
		Metadata: finance.ForecastMetadata{
			UserID:         a.userID,
			ForecastStart:  today.Format(time.DateOnly),
			ForecastEnd:    end.Format(time.DateOnly),
			CurrentBalance: balance,
			ForecastDays:   days,
		},
	}, nil
}

// PeriodResult carries either a forecast or the error that replaced it.
type PeriodResult struct {
	Forecast *finance.ForecastResult `json:"forecast,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// ForecastPeriods produces forecasts for every allowed horizon, keyed
// "30d"/"90d"/"180d". Each horizon is an independent conversation; a
// failed horizon yields an error entry without failing the others.
func (a *Assembler) ForecastPeriods(ctx context.Context) map[string]PeriodResult {
	results := make([]PeriodResult, len(Horizons))

	var g errgroup.Group
	for i, days := range Horizons {
		g.Go(func() error {
			fr, err := a.Forecast(ctx, days)
			if err != nil {
				results[i] = PeriodResult{Error: err.Error()}
				return nil
			}
			results[i] = PeriodResult{Forecast: &fr}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]PeriodResult, len(Horizons))
	for i, days := range Horizons {
		out[fmt.Sprintf("%dd", days)] = results[i]
	}
	return out
}

// buildPrompt renders the deterministic forecasting instruction from the
// three grounding summaries.
func buildPrompt(balance float64, avgs finance.MonthlyAverages, recurring map[string][]finance.Transaction, days int, end time.Time) string {
	var b strings.Builder
	b.WriteString("You are a financial analyst agent tasked with forecasting cash flow.\n\n")
	b.WriteString("Current Information:\n")
	fmt.Fprintf(&b, "- Current Balance: $%.2f\n", balance)
	fmt.Fprintf(&b, "- Average Monthly Income: $%.2f\n", avgs.AvgIncome)
	fmt.Fprintf(&b, "- Average Monthly Expenses: $%.2f\n", avgs.AvgExpenses)
	fmt.Fprintf(&b, "- Net Monthly Cash Flow: $%.2f\n", avgs.AvgNet)

	if len(recurring) > 0 {
		b.WriteString("\nRecurring transactions detected in history:\n")
		descs := make([]string, 0, len(recurring))
		for desc := range recurring {
			descs = append(descs, desc)
		}
		sort.Strings(descs)
		for _, desc := range descs {
			fmt.Fprintf(&b, "- %s (%d occurrences)\n", desc, len(recurring[desc]))
		}
	}

	fmt.Fprintf(&b, "\nForecasting Task:\nForecast the cash flow for the next %d days (until %s).\n", days, end.Format(time.DateOnly))
	b.WriteString(`
Consider:
1. Recurring transactions identified from historical data
2. Expected changes in income or expenses
3. Seasonal variations if applicable

Generate a day-by-day forecast showing:
- Date
- Expected income
- Expected expenses
- Net daily cash flow
- Running balance

Then provide:
1. A summary of total expected income over this period
2. Total expected expenses
3. Net cash flow
4. Final projected balance
5. Key insights about the forecasted period

Use the available tools to analyze transaction history and identify patterns.
`)
	return b.String()
}
