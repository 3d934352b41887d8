package multidns

import (
	"errors"
	"net"
)

// ErrNoResolvers is returned when a group is built without any member
// resolvers.
var ErrNoResolvers = errors.New("no resolvers configured")

// ErrNoResponse is returned when a query terminates without any response or
// error having been received from any server.
var ErrNoResponse = errors.New("no response from any server")

// A timed-out attempt leaves the server eligible for further attempts, any
// other I/O failure removes it from the rotation for the remainder of the
// query.
func isTransient(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return false
}
