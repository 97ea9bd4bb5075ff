// Package errors defines the error taxonomy shared by every layer:
// bad caller input, missing entities, upstream identity failures and
// lost concurrent updates. Transport layers map these to status codes.
package errors

import (
	"fmt"
	"strings"
)

// ValidationError reports bad caller input, naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// UpstreamError reports that the identity service was unreachable or
// returned an error. IDs carries the lookups that failed, so callers
// can degrade those entries instead of failing the whole aggregation.
// Safe to retry.
type UpstreamError struct {
	IDs []string
	Err error
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("identity lookup failed for [%s]: %v",
		strings.Join(e.IDs, ","), e.Err)
}

func (e UpstreamError) Unwrap() error { return e.Err }

// ConflictError reports a concurrent update that lost its race after
// the internal retry budget was exhausted. Safe to retry.
type ConflictError struct {
	Entity string
	ID     string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("concurrent update conflict on %s %s", e.Entity, e.ID)
}
