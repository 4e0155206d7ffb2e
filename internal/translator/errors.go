package translator

import "errors"

// Error kinds surfaced by the translation layer. The first three are fatal
// to a request; ambiguity and per-frame stream errors are not.
var (
	ErrInvalidRequest  = errors.New("request does not conform to source dialect")
	ErrInvalidResponse = errors.New("response does not conform to upstream dialect")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrAmbiguousModel  = errors.New("model matches multiple providers")
)
