// Package recon provides the reconciliation orchestrator: selection state,
// the review/auto-update gate, the one-slot undo snapshot, and the driving of
// the normalizer after every destructive operation.
//
// # Error Codes Reference
//
// Operations never panic across the package boundary; failures surface as
// typed outcomes carrying a user message with a support code. Codes are
// grouped by category:
//
//	COL001 - Required columns missing from the ledger table
//	         Action: re-import with the documented column layout
//	         Patterns: "columns not found"
//
//	TBL001 - Table has no header row
//	         Action: re-import the ledger
//	         Patterns: "empty table"
//
//	STO001 - No ledger stored under the requested slot
//	         Action: import a ledger first
//	         Patterns: "slot not found"
//
//	STO002 - Store unavailable
//	         Action: try again in a few moments
//	         Patterns: "connection refused", "connection reset"
//
//	STO003 - Store operation timed out
//	         Action: try again
//	         Patterns: "timeout"
//
//	ERR000 - Unexpected error (check server logs with the request ID)
package recon

import "strings"

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference code
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. First match wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "columns not found",
		msg: UserMessage{
			Message: "The ledger is missing required columns",
			Action:  "Re-import the ledger with the documented column layout",
			Code:    "COL001",
		},
	},
	{
		pattern: "empty table",
		msg: UserMessage{
			Message: "The ledger has no header row",
			Action:  "Re-import the ledger",
			Code:    "TBL001",
		},
	},
	{
		pattern: "slot not found",
		msg: UserMessage{
			Message: "No ledger has been imported yet",
			Action:  "Import a ledger before reconciling",
			Code:    "STO001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "The ledger store is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "STO002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "The ledger store connection was interrupted",
			Action:  "Please try again",
			Code:    "STO002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The store operation timed out",
			Action:  "Please try again",
			Code:    "STO003",
		},
	},
}

// MapError converts a technical error into a user-friendly message with a
// support code. Unrecognized errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errText := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errText, ep.pattern) {
			return ep.msg
		}
	}

	return UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Check the server logs, quoting the request ID",
		Code:    "ERR000",
	}
}
