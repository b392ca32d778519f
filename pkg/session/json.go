package session

import (
	"github.com/tidwall/gjson"
)

// JSONCodec decodes session records serialized as JSON, where the connector
// is a nested object carrying the same attributes as the pickled one.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Decode(blob []byte) (*Connector, error) {
	if len(blob) == 0 {
		return nil, decodeErr("empty record")
	}
	if !gjson.ValidBytes(blob) {
		return nil, decodeErr("invalid JSON")
	}

	root := gjson.ParseBytes(blob)
	if !root.IsObject() {
		return nil, decodeErr("top level is not an object")
	}

	conn := root.Get(ConnectorKey)
	if !conn.IsObject() {
		return nil, decodeErr("no %q object", ConnectorKey)
	}

	key := conn.Get(attrSessionKey)
	if key.Type != gjson.String || key.Str == "" {
		return nil, decodeErr("connector has no %s", attrSessionKey)
	}

	return &Connector{
		SessionKey: key.Str,
		ServerID:   conn.Get(attrServerID).String(),
		UserID:     conn.Get(attrUserID).Int(),
		IsSecure:   conn.Get(attrIsSecure).Bool(),
		IsPublic:   conn.Get(attrIsPublic).Bool(),
	}, nil
}
