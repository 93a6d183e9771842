package transport

import "errors"

// ErrMalformedFrame marks a ReceiveRequest failure caused by a single bad
// frame — too short, garbled, addressed nowhere sensible — rather than the
// transport itself failing. The connection is still usable; the caller may
// drop the frame and keep serving.
var ErrMalformedFrame = errors.New("transport: malformed request frame")

// ErrResponseTooLarge marks a SendResponse failure caused by a response that
// does not fit the transport's frame size, as distinct from the transport
// being unusable.
var ErrResponseTooLarge = errors.New("transport: response exceeds frame size")
