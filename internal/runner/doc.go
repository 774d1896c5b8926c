// Package runner coordinates message exchange with the Anthropic Messages
// API and dispatches tool calls.
//
// Invariants:
//   - tool_use and the corresponding tool_result stay adjacent within a
//     turn, and results are returned in the order the tool_use blocks
//     were emitted.
//   - the loop is bounded: MaxTurns round trips, then ErrTurnLimit.
//
// Flow:
//
//	user(text) -> assistant(tool_use...) -> user(tool_result...) -> assistant(text)
package runner
