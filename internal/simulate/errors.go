package simulate

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrEncodeStream = errors.New("encode frame stream failed")
	ErrDecodeStream = errors.New("decode frame stream failed")
	ErrVerification = errors.New("verification failed")
)
