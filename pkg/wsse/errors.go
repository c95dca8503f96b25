package wsse

import "fmt"

// ValidationError reports a failed verification or decryption step on an
// incoming message. A message that produces one must be rejected; no
// partial trust is granted.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("security validation failed during %s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
