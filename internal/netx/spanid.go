package netx

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a fresh UUIDv7 string used to correlate the log events
// of a single fetch.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
