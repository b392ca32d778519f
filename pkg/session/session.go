// Package session decodes OMERO.web session records written by Django into
// the Connector that carries the OMERO remote session key.
package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDecode is returned when a session record cannot be decoded into a
// Connector. All codec failures wrap it.
var ErrDecode = errors.New("session: undecodable record")

// ConnectorKey is the entry of the Django session dict holding the
// OMERO.web connector.
const ConnectorKey = "connector"

// Connector is the decoded OMERO.web connector.
type Connector struct {
	// SessionKey is the OMERO remote session key. Never empty on a
	// successfully decoded connector.
	SessionKey string

	ServerID string
	UserID   int64
	IsSecure bool
	IsPublic bool
}

// Codec turns a serialized session record into a Connector.
// Decoding is all-or-nothing.
type Codec interface {
	Decode(blob []byte) (*Connector, error)
	Name() string
}

// Codec names
const (
	CodecPickle = "pickle"
	CodecJSON   = "json"
)

// NewCodec returns the codec registered under name. An empty name selects
// the pickle codec, which is what Django writes by default for OMERO.web.
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", CodecPickle:
		return PickleCodec{}, nil
	case CodecJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown session codec %q", name)
	}
}

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}
