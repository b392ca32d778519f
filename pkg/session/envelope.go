package session

import (
	"bytes"
	"encoding/base64"
)

// SignedEnvelope unwraps the session_data column of Django's database
// session backend: base64("<hash>:<serialized>"). The hash is not checked;
// the secret belongs to the web application that wrote the row.
type SignedEnvelope struct {
	Inner Codec
}

func (e SignedEnvelope) Name() string { return "signed+" + e.Inner.Name() }

func (e SignedEnvelope) Decode(blob []byte) (*Connector, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(blob)))
	n, err := base64.StdEncoding.Decode(raw, bytes.TrimSpace(blob))
	if err != nil {
		return nil, decodeErr("session_data is not base64: %v", err)
	}
	raw = raw[:n]

	_, payload, ok := bytes.Cut(raw, []byte{':'})
	if !ok {
		return nil, decodeErr("session_data has no hash separator")
	}
	return e.Inner.Decode(payload)
}
