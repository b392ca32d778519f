package session

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickleCodec(t *testing.T) {
	codec := PickleCodec{}

	t.Run("Connector", func(t *testing.T) {
		c, err := codec.Decode(connectorPickle("0f1e2d3c-aaaa-bbbb-cccc-000000000001"))
		require.NoError(t, err)

		assert.Equal(t, "0f1e2d3c-aaaa-bbbb-cccc-000000000001", c.SessionKey)
		assert.Equal(t, "1", c.ServerID)
		assert.Equal(t, int64(52), c.UserID)
		assert.False(t, c.IsSecure)
		assert.True(t, c.IsPublic)
	})

	t.Run("Idempotent", func(t *testing.T) {
		blob := connectorPickle("k1")
		a, err := codec.Decode(blob)
		require.NoError(t, err)
		b, err := codec.Decode(blob)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("ToleratesForeignObjects", func(t *testing.T) {
		w := newPickle()
		w.op('}', '(')
		w.str("_session_expiry")
		w.global("datetime", "datetime").op('C', 3, 'a', 'b', 'c', 0x85, 'R') // REDUCE
		w.str(ConnectorKey)
		w.global("omeroweb.connector", "Connector").op(')', 0x81)
		w.op('}').str(attrSessionKey).str("with-datetime").op('s', 'b')
		w.op('u')

		c, err := codec.Decode(w.done())
		require.NoError(t, err)
		assert.Equal(t, "with-datetime", c.SessionKey)
	})

	failures := []struct {
		name string
		blob []byte
	}{
		{"Empty", nil},
		{"Garbage", []byte("definitely not a pickle")},
		{"Truncated", connectorPickle("k")[:20]},
		{"TopLevelList", newPickle().op(']').done()},
		{"NoConnector", newPickle().op('}').str("other").small(1).op('s').done()},
		{"ConnectorIsString", newPickle().op('}').str(ConnectorKey).str("nope").op('s').done()},
		{"ConnectorWithoutKey", func() []byte {
			w := newPickle()
			w.op('}').str(ConnectorKey)
			w.global("omeroweb.connector", "Connector").op(')', 0x81)
			w.op('}').str(attrServerID).small(1).op('s', 'b', 's')
			return w.done()
		}()},
		{"EmptyKey", connectorPickle("")},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			c, err := codec.Decode(tt.blob)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
			assert.Nil(t, c)
		})
	}
}

func TestJSONCodec(t *testing.T) {
	codec := JSONCodec{}

	c, err := codec.Decode([]byte(`{"_auth_user_id":"7","connector":{"omero_session_key":"abc","server_id":1,"user_id":52,"is_secure":true,"is_public":false}}`))
	require.NoError(t, err)
	assert.Equal(t, &Connector{SessionKey: "abc", ServerID: "1", UserID: 52, IsSecure: true}, c)

	for name, blob := range map[string]string{
		"Empty":        "",
		"Invalid":      `{"connector":`,
		"Array":        `[1,2]`,
		"NoConnector":  `{"a":1}`,
		"KeyNotString": `{"connector":{"omero_session_key":12}}`,
		"KeyEmpty":     `{"connector":{"omero_session_key":""}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode([]byte(blob))
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestSignedEnvelope(t *testing.T) {
	env := SignedEnvelope{Inner: PickleCodec{}}
	assert.Equal(t, "signed+pickle", env.Name())

	t.Run("Unwraps", func(t *testing.T) {
		raw := append([]byte("3f2a9c:"), connectorPickle("db-key")...)
		blob := []byte(base64.StdEncoding.EncodeToString(raw))

		c, err := env.Decode(blob)
		require.NoError(t, err)
		assert.Equal(t, "db-key", c.SessionKey)
	})

	t.Run("NotBase64", func(t *testing.T) {
		_, err := env.Decode([]byte("%%%"))
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("NoSeparator", func(t *testing.T) {
		_, err := env.Decode([]byte(base64.StdEncoding.EncodeToString([]byte("nohash"))))
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("InnerFailure", func(t *testing.T) {
		_, err := env.Decode([]byte(base64.StdEncoding.EncodeToString([]byte("h:garbage"))))
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestNewCodec(t *testing.T) {
	c, err := NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecPickle, c.Name())

	c, err = NewCodec("JSON")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, c.Name())

	_, err = NewCodec("msgpack")
	assert.Error(t, err)
}
