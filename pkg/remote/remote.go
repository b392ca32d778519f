// Package remote is the client side of the OMERO server: joining an
// existing session by key and the few calls the thumbnail endpoints need.
package remote

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied is returned when the server refuses the session
	// key or the caller may not read the requested objects.
	ErrPermissionDenied = errors.New("remote: permission denied")

	// ErrSessionNotFound is returned when no session exists for the key.
	ErrSessionNotFound = errors.New("remote: cannot create session")

	// ErrClosed is returned by calls on a session that was closed.
	ErrClosed = errors.New("remote: session closed")
)

// AllGroups queries across every group the user belongs to.
const AllGroups = "-1"

// Image is the subset of an OMERO image the thumbnail endpoints use.
type Image struct {
	ID       int64 `json:"id"`
	PixelsID int64 `json:"pixelsId"`
	GroupID  int64 `json:"groupId"`
}

// Dialer joins remote sessions.
type Dialer interface {
	JoinSession(ctx context.Context, key string) (Session, error)
}

// Session is a joined remote session. It is not safe for concurrent use
// and must be closed exactly once by whoever joined it.
type Session interface {
	Key() string

	// FindImages loads the images with the given IDs across all groups.
	// Missing or unreadable IDs are omitted.
	FindImages(ctx context.Context, ids []int64) ([]Image, error)

	// ThumbnailsByLongestSide renders JPEG thumbnails scaled so that the
	// longest side is size pixels, keyed by pixels ID.
	ThumbnailsByLongestSide(ctx context.Context, size int, pixelsIDs []int64, group int64) (map[int64][]byte, error)

	Close(ctx context.Context) error
}

// Config locates the OMERO server.
type Config struct {
	Host string `mapstructure:"host" validate:"required" yaml:"host"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// TLS enables transport security towards the server
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// CloseTimeout bounds closing a session after the work is done
	CloseTimeout time.Duration `mapstructure:"close_timeout" validate:"gte=0" yaml:"close_timeout"`

	// CallTimeout bounds joining a session and the work done in it
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gte=0" yaml:"call_timeout"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 4064
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = 5 * time.Second
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 30 * time.Second
	}
}
