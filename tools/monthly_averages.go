package tools

import (
	"context"
	"encoding/json"

	"github.com/jthornhill/finagent/internal/finance"
)

type MonthlyAveragesInput struct {
	Months int `json:"months,omitempty" jsonschema_description:"Number of trailing months to analyze (default 3)."`
}

// defaultAverageMonths is the fallback window when months <= 0.
const defaultAverageMonths = 3

var MonthlyAveragesInputSchema = GenerateSchema[MonthlyAveragesInput]()

// MonthlyAveragesDefinition returns the calculate_monthly_averages tool
// bound to the given data facade.
func MonthlyAveragesDefinition(data finance.DataAccessFacade) ToolDefinition {
	return ToolDefinition{
		Name:        "calculate_monthly_averages",
		Description: "Calculate average monthly income, expenses, and net cash flow over a trailing window of months.",
		InputSchema: MonthlyAveragesInputSchema,
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in MonthlyAveragesInput
			if err := decodeInput("calculate_monthly_averages", input, &in); err != nil {
				return "", err
			}
			months := in.Months
			if months <= 0 {
				months = defaultAverageMonths
			}
			avgs, err := data.MonthlyAverages(ctx, months)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(avgs)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
