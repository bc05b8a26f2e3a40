package core

import "errors"

// ErrInvalidData marks a bar series that cannot be replayed.
var ErrInvalidData = errors.New("invalid data")
