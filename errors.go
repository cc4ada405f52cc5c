package udpqueue

import "github.com/pkg/errors"

// ErrInvalidConfig is returned by New and Load when capacity or interval
// are non-positive.
var ErrInvalidConfig = errors.New("udpqueue: invalid configuration")
