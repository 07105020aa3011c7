package tokens

import "errors"

// ErrInvalidCacheSize indicates a non-positive cache size.
var ErrInvalidCacheSize = errors.New("cache size must be positive")
