package tools

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jthornhill/finagent/internal/finance"
)

type GetBalanceInput struct{}

var GetBalanceInputSchema = GenerateSchema[GetBalanceInput]()

// GetBalanceDefinition returns the get_balance tool bound to the given
// data facade. The result is the balance as a plain decimal string.
func GetBalanceDefinition(data finance.DataAccessFacade) ToolDefinition {
	return ToolDefinition{
		Name:        "get_balance",
		Description: "Get the user's current balance: the stored initial balance plus all income minus all expenses.",
		InputSchema: GetBalanceInputSchema,
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in GetBalanceInput
			if err := decodeInput("get_balance", input, &in); err != nil {
				return "", err
			}
			balance, err := data.GetBalance(ctx)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(balance, 'f', 2, 64), nil
		},
	}
}
