package model

import "errors"

// ErrNotFound marks a lookup for an entity that does not exist. It aborts
// only the single reconciliation step touching that entity, never a batch.
var ErrNotFound = errors.New("not found")

// ErrConflict marks a duplicate insert racing another transaction. Callers
// treat it as benign and retry the lookup-then-no-op path.
var ErrConflict = errors.New("conflict")
