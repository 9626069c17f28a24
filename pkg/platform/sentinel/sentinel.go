package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: concurrent writer won, or a unique key is taken
//   - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
