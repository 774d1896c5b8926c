// Package tools defines the tool contracts exposed to the model and the
// finance tool implementations backing them.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - Registry: closed, ordered set of tools with by-name dispatch.
//   - Finance tools: get_transactions, get_balance,
//     calculate_monthly_averages, get_recurring_transactions.
//   - Invariants: tool results preserve the order of the tool_use blocks
//     that requested them; a failing handler never aborts the batch.
package tools
