package session

import (
	"bytes"
	"encoding/binary"
)

// pickleWriter assembles protocol 2 pickles the way CPython writes a Django
// session dict holding an omeroweb.connector.Connector.
type pickleWriter struct {
	bytes.Buffer
}

func newPickle() *pickleWriter {
	w := &pickleWriter{}
	w.Write([]byte{0x80, 0x02}) // PROTO 2
	return w
}

func (w *pickleWriter) str(s string) *pickleWriter {
	w.WriteByte('X') // BINUNICODE
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	w.Write(n[:])
	w.WriteString(s)
	return w
}

func (w *pickleWriter) small(v uint8) *pickleWriter {
	w.WriteByte('K') // BININT1
	w.WriteByte(v)
	return w
}

func (w *pickleWriter) boolean(v bool) *pickleWriter {
	if v {
		w.WriteByte(0x88)
	} else {
		w.WriteByte(0x89)
	}
	return w
}

func (w *pickleWriter) global(module, name string) *pickleWriter {
	w.WriteByte('c')
	w.WriteString(module + "\n" + name + "\n")
	return w
}

func (w *pickleWriter) op(b ...byte) *pickleWriter {
	w.Write(b)
	return w
}

func (w *pickleWriter) done() []byte {
	w.WriteByte('.')
	return w.Bytes()
}

// connectorPickle returns a pickled session dict {"connector": Connector(...)}
// with an extra "_auth_user_id" entry before it.
func connectorPickle(sessionKey string) []byte {
	w := newPickle()
	w.op('}', '(')
	w.str("_auth_user_id").str("7")
	w.str(ConnectorKey)
	w.global("omeroweb.connector", "Connector").op(')', 0x81)
	w.op('}', '(')
	w.str(attrSessionKey).str(sessionKey)
	w.str(attrServerID).small(1)
	w.str(attrIsSecure).boolean(false)
	w.str(attrIsPublic).boolean(true)
	w.str(attrUserID).small(52)
	w.op('u', 'b') // SETITEMS, BUILD
	w.op('u')      // outer SETITEMS
	return w.done()
}
