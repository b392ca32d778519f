package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/thumbgate/pkg/bus"
	"github.com/marmos91/thumbgate/pkg/remote"
	"github.com/marmos91/thumbgate/pkg/remote/remotetest"
	"github.com/marmos91/thumbgate/pkg/session/store"
	"github.com/marmos91/thumbgate/pkg/thumbnail"
	"github.com/marmos91/thumbgate/pkg/worker"
)

var thumbJPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0xff, 0xd9}

type gateway struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	remote *remotetest.Gateway
	bus    *bus.Bus
}

func newGateway(t *testing.T) *gateway {
	t.Helper()

	mr := miniredis.RunT(t)
	st, err := store.New(context.Background(), &store.Config{
		Type:  store.TypeRedis,
		Codec: "json",
		Redis: store.RedisConfig{URI: "redis://" + mr.Addr()},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	gw := remotetest.New().
		AddSession("omero-key").
		AddImage(remote.Image{ID: 1, PixelsID: 10, GroupID: 3}, thumbJPEG).
		AddImage(remote.Image{ID: 2, PixelsID: 20, GroupID: 3}, nil)
	dialer := gw.Start(t)

	pool := worker.NewPool(2)
	t.Cleanup(pool.Close)
	b := bus.New(bus.WithDefaultTimeout(5 * time.Second))
	t.Cleanup(b.Close)
	require.NoError(t, thumbnail.NewService(dialer).Register(b, pool))

	srv := NewServer(Config{}, Dependencies{Store: st, Dispatcher: b, Pool: pool, Version: "1.2.3"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	g := &gateway{server: ts, redis: mr, remote: gw, bus: b}
	g.login("web-cookie", "omero-key")
	return g
}

// login stores a web session the way Django's cache backend does.
func (g *gateway) login(cookie, key string) {
	record := `{"connector":{"omero_session_key":"` + key + `","user_id":52}}`
	_ = g.redis.Set(store.CacheKey("", 1, cookie), record)
}

func (g *gateway) get(t *testing.T, path, cookie string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, g.server.URL+path, nil)
	require.NoError(t, err)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: cookie})
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

func TestRenderThumbnailRoutes(t *testing.T) {
	g := newGateway(t)

	paths := []string{
		"/webclient/render_thumbnail/size/64/1",
		"/webclient/render_thumbnail/1",
		"/webgateway/render_thumbnail/1/64",
		"/webgateway/render_thumbnail/1",
		"/webgateway/render_thumbnail/1/64/extra/segments",
		"/webclient/render_birds_eye_view/1",
		"/webgateway/render_birds_eye_view/1/64",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			resp := g.get(t, path, "web-cookie")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
			assert.Equal(t, "8", resp.Header.Get("Content-Length"))
			assert.Equal(t, thumbJPEG, readBody(t, resp))
		})
	}

	assert.Equal(t, g.remote.Joins(), g.remote.Closes())
	assert.Zero(t, g.remote.Open())
}

func TestRenderThumbnailSize(t *testing.T) {
	g := newGateway(t)

	g.get(t, "/webclient/render_thumbnail/size/128/1", "web-cookie")
	assert.Equal(t, 128, g.remote.LastLongestSide())

	g.get(t, "/webgateway/render_thumbnail/1", "web-cookie")
	assert.Equal(t, thumbnail.DefaultLongestSide, g.remote.LastLongestSide())
}

func TestUnauthenticatedNeverDispatches(t *testing.T) {
	g := newGateway(t)

	assert.Equal(t, http.StatusForbidden, g.get(t, "/webgateway/render_thumbnail/1", "").StatusCode)
	assert.Equal(t, http.StatusForbidden, g.get(t, "/webgateway/render_thumbnail/1", "unknown").StatusCode)

	// malformed record fails closed
	_ = g.redis.Set(store.CacheKey("", 1, "garbled"), "\x80\x02garbage")
	assert.Equal(t, http.StatusForbidden, g.get(t, "/webgateway/render_thumbnail/1", "garbled").StatusCode)

	assert.Zero(t, g.remote.Joins())
}

func TestRemoteFailures(t *testing.T) {
	g := newGateway(t)
	g.login("stale-cookie", "expired-omero-key")

	tests := []struct {
		name   string
		path   string
		cookie string
		status int
	}{
		{"session not joinable", "/webgateway/render_thumbnail/1", "stale-cookie", http.StatusForbidden},
		{"image absent", "/webgateway/render_thumbnail/404", "web-cookie", http.StatusNotFound},
		{"thumbnail absent", "/webgateway/render_thumbnail/2", "web-cookie", http.StatusNotFound},
		{"bad image id", "/webgateway/render_thumbnail/abc", "web-cookie", http.StatusBadRequest},
		{"bad size", "/webgateway/render_thumbnail/1/big", "web-cookie", http.StatusBadRequest},
		{"bad rdefId", "/webgateway/render_thumbnail/1?rdefId=x", "web-cookie", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := g.get(t, tt.path, tt.cookie)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusBadRequest {
				assert.Empty(t, readBody(t, resp))
			}
		})
	}
	assert.Zero(t, g.remote.Open())
}

func TestInternalError(t *testing.T) {
	g := newGateway(t)
	g.remote.FailThumbnails(errors.New("store offline"))

	resp := g.get(t, "/webgateway/render_thumbnail/1", "web-cookie")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, readBody(t, resp))
	assert.Zero(t, g.remote.Open())
}

func TestBackendErrorIs500(t *testing.T) {
	g := newGateway(t)
	g.redis.Close()

	resp := g.get(t, "/webgateway/render_thumbnail/1", "web-cookie")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGetThumbnails(t *testing.T) {
	g := newGateway(t)

	resp := g.get(t, "/webgateway/get_thumbnails/64?id=1&id=2&id=99", "web-cookie")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out map[string]*string
	require.NoError(t, json.Unmarshal(readBody(t, resp), &out))
	require.Len(t, out, 3)
	require.NotNil(t, out["1"])
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(thumbJPEG), *out["1"])
	assert.Nil(t, out["2"])
	assert.Nil(t, out["99"])
	assert.Equal(t, 64, g.remote.LastLongestSide())
}

func TestGetThumbnailsJSONP(t *testing.T) {
	g := newGateway(t)

	resp := g.get(t, "/webclient/get_thumbnails?id=1&callback=cb", "web-cookie")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))

	body := string(readBody(t, resp))
	assert.True(t, strings.HasPrefix(body, "cb({"), body)
	assert.True(t, strings.HasSuffix(body, "});"), body)

	bad := g.get(t, "/webclient/get_thumbnails?id=1&callback=alert(1)", "web-cookie")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestGetThumbnailsNothingFound(t *testing.T) {
	g := newGateway(t)
	resp := g.get(t, "/webgateway/get_thumbnails?id=404", "web-cookie")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNoConsumerIs503(t *testing.T) {
	g := newGateway(t)
	g.bus.Unregister(thumbnail.EndpointRenderThumbnail)

	resp := g.get(t, "/webgateway/render_thumbnail/1", "web-cookie")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTimeoutIs504(t *testing.T) {
	g := newGateway(t)

	slow := bus.New(bus.WithDefaultTimeout(20 * time.Millisecond))
	t.Cleanup(slow.Close)
	require.NoError(t, slow.Consumer(thumbnail.EndpointRenderThumbnail, func(_ context.Context, msg *bus.Message) {
		time.Sleep(200 * time.Millisecond)
		msg.Reply(thumbJPEG)
	}, bus.Inline))

	st, err := store.New(context.Background(), &store.Config{
		Type:  store.TypeRedis,
		Codec: "json",
		Redis: store.RedisConfig{URI: "redis://" + g.redis.Addr()},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ts := httptest.NewServer(NewServer(Config{}, Dependencies{Store: st, Dispatcher: slow}).Handler())
	t.Cleanup(ts.Close)
	g.server = ts

	resp := g.get(t, "/webgateway/render_thumbnail/1", "web-cookie")
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestOptionsDetails(t *testing.T) {
	g := newGateway(t)

	req, err := http.NewRequest(http.MethodOptions, g.server.URL+"/", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var details map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&details))
	assert.Equal(t, "ThumbnailMicroservice", details["provider"])
	assert.Equal(t, "1.2.3", details["version"])
	assert.Equal(t, []any{}, details["features"])
}

func TestHealth(t *testing.T) {
	g := newGateway(t)

	assert.Equal(t, http.StatusOK, g.get(t, "/health", "").StatusCode)

	ready := g.get(t, "/health/ready", "")
	require.Equal(t, http.StatusOK, ready.StatusCode)
	assert.Contains(t, string(readBody(t, ready)), `"backend":"redis"`)

	g.redis.Close()
	assert.Equal(t, http.StatusServiceUnavailable, g.get(t, "/health/ready", "").StatusCode)
}
