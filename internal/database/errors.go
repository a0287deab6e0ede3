package database

import "fmt"

// CorruptLogError indicates that a stored attendance log failed schema
// validation. The ledger fails closed on this error: the log is never
// mutated and the identity is surfaced for manual remediation.
type CorruptLogError struct {
	IdentityID int64
	Reason     string
}

func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt attendance log for identity %d: %s", e.IdentityID, e.Reason)
}

// ValidationError indicates invalid enrollment input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
