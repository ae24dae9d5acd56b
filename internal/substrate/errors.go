package substrate

import "errors"

// Sentinel errors returned by the substrate layer. Higher layers (edgex's
// Error/Code taxonomy) wrap these with errors.Is/errors.As rather than
// re-deriving the condition.
var (
	ErrAllocFailure     = errors.New("substrate: registry capacity exhausted")
	ErrInvalidHandle    = errors.New("substrate: invalid or destroyed handle")
	ErrPermissionDenied = errors.New("substrate: permission denied")
	ErrTimeout          = errors.New("substrate: wait timed out")
)
