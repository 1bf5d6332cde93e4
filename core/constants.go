package core

import (
	"errors"
	"time"

	"github.com/searchktools/rawhttp/core/pools"
)

// DefaultWorkers is the worker pool size used unless Builder.Workers is called
const DefaultWorkers = pools.DefaultWorkers

const (
	// lingerTimeout bounds how long a closing connection waits for the
	// peer to finish sending after our response
	lingerTimeout = 200 * time.Millisecond

	// maxLingerBytes caps the unread input discarded while lingering
	maxLingerBytes = 64 << 10

	// accept error backoff bounds
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Error definitions
var (
	ErrNoBindings           = errors.New("no bind address configured")
	ErrServerClosed         = errors.New("server closed")
	ErrServerRunning        = errors.New("server already running")
	ErrReusePortUnsupported = errors.New("SO_REUSEPORT is not supported on this platform")
)
