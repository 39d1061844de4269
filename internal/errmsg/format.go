// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Startup
	OpConfigLoad   Op = "load configuration"
	OpLogSetup     Op = "set up logging"
	OpStateOpen    Op = "open state database"
	OpPlayerLookup Op = "connect to the media player"
	OpInitialize   Op = "initialize scrobbler"

	// Last.fm authorization
	OpLastfmIdentity Op = "create Last.fm client"
	OpLastfmToken    Op = "request Last.fm token"
	OpLastfmSession  Op = "get Last.fm session"
	OpSessionLoad    Op = "load Last.fm session"
	OpSessionSave    Op = "save Last.fm session"
	OpSessionDelete  Op = "remove Last.fm session"
	OpBrowserOpen    Op = "open browser"

	// Destinations
	OpPresenceSetup Op = "set up desktop presence"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
