package store

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/thumbgate/internal/logger"
)

// connectorPickle is a protocol 2 pickle of {"connector": Connector(omero_session_key=key)}
func connectorPickle(key string) []byte {
	var b bytes.Buffer
	str := func(s string) {
		b.WriteByte('X')
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
		b.Write(n[:])
		b.WriteString(s)
	}

	b.Write([]byte{0x80, 0x02, '}'})
	str("connector")
	b.WriteString("comeroweb.connector\nConnector\n")
	b.Write([]byte{')', 0x81, '}'})
	str("omero_session_key")
	str(key)
	b.Write([]byte{'s', 'b', 's', '.'})
	return b.Bytes()
}

// djangoSessionData wraps a pickle the way Django's database backend does.
func djangoSessionData(key string) string {
	return base64.StdEncoding.EncodeToString(append([]byte("9a0b1c2d:"), connectorPickle(key)...))
}

type lookupRecord struct {
	backend string
	result  string
}

type fakeMetrics struct {
	mu      sync.Mutex
	lookups []lookupRecord
}

func (m *fakeMetrics) ObserveLookup(backend, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, lookupRecord{backend, result})
}

func (m *fakeMetrics) results() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.lookups))
	for _, l := range m.lookups {
		out = append(out, l.result)
	}
	return out
}

// captureLogs routes the global logger to a buffer at DEBUG level.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	logger.InitWithWriter(buf, "DEBUG", "text", false)
	t.Cleanup(func() {
		logger.InitWithWriter(os.Stdout, "INFO", "text", false)
	})
	return buf
}
