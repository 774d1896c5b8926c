package tools

import (
	"context"
	"encoding/json"

	"github.com/jthornhill/finagent/internal/finance"
)

type RecurringTransactionsInput struct {
	MinOccurrences int `json:"min_occurrences,omitempty" jsonschema_description:"Minimum number of occurrences for a transaction to count as recurring (default 2)."`
}

// defaultMinOccurrences is the fallback threshold when min_occurrences <= 0.
const defaultMinOccurrences = 2

var RecurringTransactionsInputSchema = GenerateSchema[RecurringTransactionsInput]()

// RecurringTransactionsDefinition returns the get_recurring_transactions
// tool bound to the given data facade. The result maps descriptions to
// the transactions sharing them.
func RecurringTransactionsDefinition(data finance.DataAccessFacade) ToolDefinition {
	return ToolDefinition{
		Name:        "get_recurring_transactions",
		Description: "Identify recurring transactions by grouping transaction history on description.",
		InputSchema: RecurringTransactionsInputSchema,
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in RecurringTransactionsInput
			if err := decodeInput("get_recurring_transactions", input, &in); err != nil {
				return "", err
			}
			min := in.MinOccurrences
			if min <= 0 {
				min = defaultMinOccurrences
			}
			recurring, err := data.RecurringTransactions(ctx, min)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(recurring)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
