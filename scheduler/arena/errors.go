package arena

import "errors"

// ErrClosed is returned by Enqueue once the pool has been Closed.
var ErrClosed = errors.New("arena: pool closed")
