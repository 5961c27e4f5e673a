package types

// ExecutionResult is the outcome of one execute or simulate call.
// Logs and ExecutedActions are copies owned by the result.
type ExecutionResult struct {
	Success         bool          `json:"success"`
	Logs            []string      `json:"logs"`
	TradingState    *TradingState `json:"trading_state"`
	Error           string        `json:"error,omitempty"`
	ExecutedActions []string      `json:"executed_actions"`
}

// Failed builds an unsuccessful result carrying only an error message.
func Failed(message string) ExecutionResult {
	return ExecutionResult{
		Success:         false,
		Logs:            []string{},
		Error:           message,
		ExecutedActions: []string{},
	}
}
