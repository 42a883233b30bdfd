package errors

import "errors"

var (
	// ErrOptimisticLock the record was modified by another writer; reload and retry
	ErrOptimisticLock = errors.New("record was modified by another operation, reload and retry")
	// ErrNotFound the addressed record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed a conditional write matched no record
	ErrConditionFailed = errors.New("conditional write did not match")
)
