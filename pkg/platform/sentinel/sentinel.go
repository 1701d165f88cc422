package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores and provider
// clients. Services translate them into domain errors:
//   - ErrNotFound: record does not exist
//   - ErrConflict: a conditional write lost because the record changed since it was read
//   - ErrUnavailable: a provider or backing service is not configured or not reachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
