// Package directory declares the directory-connection capabilities the job
// coordinator consumes. The wire protocol client itself lives elsewhere;
// jobs only see the narrow Connection interface below.
package directory

import (
	"context"
	"fmt"

	"github.com/teranos/dirjobs/pulse/monitor"
)

// Connection is one configured directory server connection.
//
// Host and Port make every Connection a lock.Endpoint, so a connection
// declared as a locked object resolves to "<host>:<port>".
type Connection interface {
	ID() string
	Name() string
	Host() string
	Port() int

	IsConnected() bool
	// Connect opens the transport. Progress and sub-errors may be reported
	// to mon; a returned error means the connection is not usable.
	Connect(ctx context.Context, mon monitor.Monitor) error
	// Bind authenticates on an open transport.
	Bind(ctx context.Context, mon monitor.Monitor) error
	Unbind() error
	Disconnect() error
}

// Address renders a connection as "<host>:<port>"
func Address(c Connection) string {
	return fmt.Sprintf("%s:%d", c.Host(), c.Port())
}

// Describe renders a connection for task names and log lines
func Describe(c Connection) string {
	if c.Name() != "" {
		return fmt.Sprintf("%s (%s)", c.Name(), Address(c))
	}
	return Address(c)
}
