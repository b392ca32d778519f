package session

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/nlpodyssey/gopickle/pickle"
)

// Attribute names of omeroweb.connector.Connector
const (
	attrSessionKey = "omero_session_key"
	attrServerID   = "server_id"
	attrUserID     = "user_id"
	attrIsSecure   = "is_secure"
	attrIsPublic   = "is_public"
)

// PickleCodec decodes Python pickles produced by Django's PickleSerializer.
type PickleCodec struct{}

func (PickleCodec) Name() string { return CodecPickle }

// pyMapping is satisfied by the unpickler's dict type.
type pyMapping interface {
	Get(key interface{}) (interface{}, bool)
}

// pyPair matches a two element tuple, the (dict, slots) state form.
type pyPair interface {
	Len() int
	Get(i int) interface{}
}

// pyClass stands in for every class the pickle references. It only
// remembers which class it was and the state handed to it.
type pyClass struct {
	module string
	name   string
}

// pyObject is an instance of a pyClass.
type pyObject struct {
	class *pyClass
	args  []interface{}
	state pyMapping
}

func (c *pyClass) PyNew(args ...interface{}) (interface{}, error) {
	return &pyObject{class: c, args: args}, nil
}

// Call covers protocol 0/1 INST/OBJ and REDUCE of foreign callables such as
// datetime.datetime.
func (c *pyClass) Call(args ...interface{}) (interface{}, error) {
	return &pyObject{class: c, args: args}, nil
}

func (o *pyObject) PySetState(state interface{}) error {
	if pair, ok := state.(pyPair); ok && pair.Len() == 2 {
		state = pair.Get(0)
	}
	m, ok := state.(pyMapping)
	if !ok {
		// Objects with __slots__ only or custom __reduce__ state are not
		// connectors; keep them opaque.
		return nil
	}
	o.state = m
	return nil
}

func (o *pyObject) PyDictSet(key, value interface{}) error {
	return fmt.Errorf("%s.%s: unexpected per-key state", o.class.module, o.class.name)
}

// Decode unpickles blob and extracts the connector.
func (PickleCodec) Decode(blob []byte) (*Connector, error) {
	if len(blob) == 0 {
		return nil, decodeErr("empty record")
	}

	u := pickle.NewUnpickler(bytes.NewReader(blob))
	u.FindClass = func(module, name string) (interface{}, error) {
		return &pyClass{module: module, name: name}, nil
	}

	root, err := u.Load()
	if err != nil {
		return nil, decodeErr("unpickle: %v", err)
	}

	sess, ok := root.(pyMapping)
	if !ok {
		return nil, decodeErr("top level is %T, want dict", root)
	}

	raw, ok := sess.Get(ConnectorKey)
	if !ok {
		return nil, decodeErr("no %q entry", ConnectorKey)
	}

	obj, ok := raw.(*pyObject)
	if !ok || obj.state == nil {
		return nil, decodeErr("%q entry is %T, want object", ConnectorKey, raw)
	}

	return connectorFromState(obj.state)
}

func connectorFromState(state pyMapping) (*Connector, error) {
	key := pyString(lookup(state, attrSessionKey))
	if key == "" {
		return nil, decodeErr("connector has no %s", attrSessionKey)
	}

	c := &Connector{
		SessionKey: key,
		IsSecure:   pyBool(lookup(state, attrIsSecure)),
		IsPublic:   pyBool(lookup(state, attrIsPublic)),
		UserID:     pyInt(lookup(state, attrUserID)),
	}

	switch v := lookup(state, attrServerID).(type) {
	case nil:
	case string, []byte:
		c.ServerID = pyString(v)
	default:
		c.ServerID = fmt.Sprint(pyInt(v))
	}

	return c, nil
}

func lookup(m pyMapping, key string) interface{} {
	v, _ := m.Get(key)
	return v
}

func pyString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func pyBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func pyInt(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case int32:
		return int64(n)
	case *big.Int:
		if n.IsInt64() {
			return n.Int64()
		}
	}
	return 0
}
