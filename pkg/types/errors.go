package types

import (
	"errors"
	"fmt"
)

// Error kinds, by taxonomy rather than by type. The HTTP layer classifies
// with errors.Is; the engine wraps these with per-step context.
var (
	// ErrInvalidSignal marks schema or numeric precondition failures on an
	// inbound payload. Surfaces as 4xx.
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrStrategyDisabled short-circuits execution before any venue I/O.
	ErrStrategyDisabled = errors.New("strategy disabled")

	// ErrSymbolBusy means the per-symbol lock could not be acquired within
	// the ceiling timeout.
	ErrSymbolBusy = errors.New("symbol busy")

	// ErrConnectivity marks venue or network failures. Fatal for the
	// current signal, never for the process.
	ErrConnectivity = errors.New("venue connectivity error")

	// ErrConfiguration marks startup-level misconfiguration; the process
	// exits non-zero.
	ErrConfiguration = errors.New("configuration error")
)

// VenueRejectedError carries an explicit venue rejection verbatim.
type VenueRejectedError struct {
	Code    string
	Message string
}

func (e *VenueRejectedError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("venue rejected: %s", e.Message)
	}
	return fmt.Sprintf("venue rejected (%s): %s", e.Code, e.Message)
}
