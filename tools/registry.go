package tools

import "github.com/jthornhill/finagent/internal/finance"

// FinanceRegistry returns the closed set of tools wired for forecasting,
// each bound to the given data facade.
func FinanceRegistry(data finance.DataAccessFacade) (*Registry, error) {
	return NewRegistry(
		GetTransactionsDefinition(data),
		GetBalanceDefinition(data),
		MonthlyAveragesDefinition(data),
		RecurringTransactionsDefinition(data),
	)
}
