package rpc

import "github.com/meridiankv/meridian/internal/errkind"

// StatusFromKind translates a leaf failure kind into the wire response
// status (§7): OK maps to SUCCESS, INVALID to BAD_ARGUMENT and TIMEOUT
// to TIMEOUT; everything else maps to INTERNAL_ERROR. NOT_FOUND has no fixed translation here since its
// meaning is handler-specific (a successful "found=0" payload for GET,
// BAD_ARGUMENT for a status lookup) — handlers that need that nuance
// branch on errkind.Is(err, errkind.NOT_FOUND) themselves rather than
// calling this function for that case.
func StatusFromKind(kind errkind.Kind) Status {
	switch kind {
	case errkind.OK:
		return StatusSuccess
	case errkind.INVALID:
		return StatusBadArgument
	case errkind.TIMEOUT:
		return StatusTimeout
	default:
		return StatusInternalError
	}
}
