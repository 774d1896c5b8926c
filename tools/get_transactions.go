package tools

import (
	"context"
	"encoding/json"

	"github.com/jthornhill/finagent/internal/finance"
)

type GetTransactionsInput struct {
	StartDate string `json:"start_date,omitempty" jsonschema_description:"Start date in YYYY-MM-DD format."`
	EndDate   string `json:"end_date,omitempty" jsonschema_description:"End date in YYYY-MM-DD format."`
}

var GetTransactionsInputSchema = GenerateSchema[GetTransactionsInput]()

// GetTransactionsDefinition returns the get_transactions tool bound to
// the given data facade. The result is a JSON array of transactions.
func GetTransactionsDefinition(data finance.DataAccessFacade) ToolDefinition {
	return ToolDefinition{
		Name:        "get_transactions",
		Description: "Get filtered transactions from the database for analysis. Both date bounds are optional and inclusive.",
		InputSchema: GetTransactionsInputSchema,
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in GetTransactionsInput
			if err := decodeInput("get_transactions", input, &in); err != nil {
				return "", err
			}
			txs, err := data.GetTransactions(ctx, in.StartDate, in.EndDate)
			if err != nil {
				return "", err
			}
			if txs == nil {
				txs = []finance.Transaction{}
			}
			b, err := json.Marshal(txs)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
