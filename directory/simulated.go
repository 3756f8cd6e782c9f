package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse/monitor"
)

// SimulatedConnection is an in-memory Connection for demos and tests.
// Operations sleep for Latency and honor context cancellation.
type SimulatedConnection struct {
	id   string
	name string
	host string
	port int

	// Latency is applied to connect, bind, and every Modify call
	Latency time.Duration
	// ConnectErr and BindErr, when set, are returned by Connect and Bind
	ConnectErr error
	BindErr    error

	mu        sync.Mutex
	connected bool
	bound     bool
	modified  []string
	connects  int
}

// NewSimulatedConnection creates a disconnected simulated connection
func NewSimulatedConnection(name, host string, port int) *SimulatedConnection {
	return &SimulatedConnection{
		id:   fmt.Sprintf("%s:%d", host, port),
		name: name,
		host: host,
		port: port,
	}
}

func (c *SimulatedConnection) ID() string   { return c.id }
func (c *SimulatedConnection) Name() string { return c.name }
func (c *SimulatedConnection) Host() string { return c.host }
func (c *SimulatedConnection) Port() int    { return c.port }

// String is the connection's textual form when it is not resolved as an endpoint
func (c *SimulatedConnection) String() string { return Describe(c) }

func (c *SimulatedConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// IsBound reports whether Bind succeeded since the last Connect
func (c *SimulatedConnection) IsBound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// ConnectCount returns how many times Connect succeeded
func (c *SimulatedConnection) ConnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *SimulatedConnection) Connect(ctx context.Context, mon monitor.Monitor) error {
	if mon != nil {
		mon.ReportProgress("Connecting to " + Address(c))
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.connects++
	return nil
}

func (c *SimulatedConnection) Bind(ctx context.Context, mon monitor.Monitor) error {
	if mon != nil {
		mon.ReportProgress("Binding to " + Address(c))
	}
	if !c.IsConnected() {
		return errors.Newf("cannot bind: %s is not connected", Address(c))
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	if c.BindErr != nil {
		return c.BindErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = true
	return nil
}

func (c *SimulatedConnection) Unbind() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = false
	return nil
}

func (c *SimulatedConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.bound = false
	return nil
}

// Modify records a modification of the entry named dn
func (c *SimulatedConnection) Modify(ctx context.Context, dn string) error {
	if !c.IsBound() {
		return errors.Newf("cannot modify %s: %s is not bound", dn, Address(c))
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modified = append(c.modified, dn)
	return nil
}

// Modified returns the DNs modified so far, in order
func (c *SimulatedConnection) Modified() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.modified...)
}

func (c *SimulatedConnection) wait(ctx context.Context) error {
	if c.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
