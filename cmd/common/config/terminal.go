package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Fallback terminal dimensions when nothing else specifies them.
const (
	DefaultRows = 24
	DefaultCols = 80
)

// ErrInvalid is wrapped by every terminal configuration validation error.
var ErrInvalid = errors.New("invalid terminal configuration")

// Terminal is the startup configuration of a terminal session: where to
// connect and how large the surface is. It is read once and passed by value.
type Terminal struct {
	EndpointURI string
	Rows        int
	Cols        int
}

// NewTerminal builds and validates a Terminal configuration.
func NewTerminal(endpointURI string, rows, cols int) (Terminal, error) {
	t := Terminal{EndpointURI: endpointURI, Rows: rows, Cols: cols}
	if err := t.Validate(); err != nil {
		return Terminal{}, err
	}
	return t, nil
}

// Validate checks that the endpoint is an absolute websocket URI and that
// both dimensions are positive.
func (t Terminal) Validate() error {
	if t.EndpointURI == "" {
		return fmt.Errorf("%w: endpoint URI is empty", ErrInvalid)
	}
	u, err := url.Parse(t.EndpointURI)
	if err != nil {
		return fmt.Errorf("%w: endpoint URI %q: %v", ErrInvalid, t.EndpointURI, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: endpoint URI %q must use ws:// or wss://", ErrInvalid, t.EndpointURI)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: endpoint URI %q has no host", ErrInvalid, t.EndpointURI)
	}
	if t.Rows <= 0 {
		return fmt.Errorf("%w: rows must be positive, got %d", ErrInvalid, t.Rows)
	}
	if t.Cols <= 0 {
		return fmt.Errorf("%w: cols must be positive, got %d", ErrInvalid, t.Cols)
	}
	return nil
}

func (t Terminal) String() string {
	return fmt.Sprintf("%s (%dx%d)", t.EndpointURI, t.Cols, t.Rows)
}
