package replay

import "errors"

// ErrInvalidFrame is returned when a capture line cannot be decoded.
var ErrInvalidFrame = errors.New("invalid capture frame")
