// Package remotetest provides an in-process OMERO gateway for tests.
package remotetest

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/marmos91/thumbgate/pkg/remote"
)

// Gateway is a fake OMERO gateway. Configure it before Start; the public
// counters are safe to read while it serves.
type Gateway struct {
	mu         sync.Mutex
	keys       map[string]bool // key -> denied
	images     map[int64]remote.Image
	thumbnails map[int64][]byte // by pixels ID
	open       map[string]string
	delay      time.Duration
	failThumbs error
	denyImages bool

	joins      int
	closes     int
	lastSize   int
	lastGroups []int64
}

// New returns an empty gateway.
func New() *Gateway {
	return &Gateway{
		keys:       map[string]bool{},
		images:     map[int64]remote.Image{},
		thumbnails: map[int64][]byte{},
		open:       map[string]string{},
	}
}

// AddSession makes key joinable.
func (g *Gateway) AddSession(key string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[key] = false
	return g
}

// DenySession makes joining key fail with PermissionDenied.
func (g *Gateway) DenySession(key string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[key] = true
	return g
}

// AddImage registers an image and, when thumb is non-nil, its thumbnail.
func (g *Gateway) AddImage(img remote.Image, thumb []byte) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images[img.ID] = img
	if thumb != nil {
		g.thumbnails[img.PixelsID] = thumb
	}
	return g
}

// SetDelay slows every data call down by d.
func (g *Gateway) SetDelay(d time.Duration) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
	return g
}

// FailThumbnails makes thumbnail calls return err.
func (g *Gateway) FailThumbnails(err error) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failThumbs = err
	return g
}

// DenyImages makes image lookups fail with PermissionDenied, as for a user
// outside the images' group.
func (g *Gateway) DenyImages() *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.denyImages = true
	return g
}

// Joins returns how many sessions were joined.
func (g *Gateway) Joins() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.joins
}

// Closes returns how many sessions were closed.
func (g *Gateway) Closes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closes
}

// Open returns how many joined sessions are still open.
func (g *Gateway) Open() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.open)
}

// LastLongestSide returns the size of the last thumbnail request.
func (g *Gateway) LastLongestSide() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSize
}

// ThumbnailGroups returns the group of every thumbnail request so far.
func (g *Gateway) ThumbnailGroups() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.lastGroups...)
}

// Start serves the gateway over an in-memory listener and returns a dialer
// connected to it. Both are torn down with the test.
func (g *Gateway) Start(t testing.TB) *remote.GRPCDialer {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	remote.RegisterGatewayServer(srv, &server{g: g})
	go func() { _ = srv.Serve(lis) }()

	dialer, err := remote.NewGRPCDialer("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial fake gateway: %v", err)
	}

	t.Cleanup(func() {
		_ = dialer.Close()
		srv.Stop()
	})
	return dialer
}

type server struct {
	g *Gateway
}

func (s *server) JoinSession(_ context.Context, in *remote.JoinSessionRequest) (*remote.JoinSessionReply, error) {
	g := s.g
	g.mu.Lock()
	defer g.mu.Unlock()

	denied, ok := g.keys[in.SessionKey]
	switch {
	case !ok:
		return nil, status.Error(codes.NotFound, "no session for key")
	case denied:
		return nil, status.Error(codes.PermissionDenied, "session key refused")
	}

	handle := uuid.NewString()
	g.open[handle] = in.SessionKey
	g.joins++
	return &remote.JoinSessionReply{Handle: handle, UserID: 52}, nil
}

func (s *server) FindImages(ctx context.Context, in *remote.FindImagesRequest) (*remote.FindImagesReply, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	s.sleep(ctx)

	g := s.g
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.denyImages {
		return nil, status.Error(codes.PermissionDenied, "not in group")
	}
	if in.Group != remote.AllGroups {
		return nil, status.Errorf(codes.InvalidArgument, "unexpected group %q", in.Group)
	}

	reply := &remote.FindImagesReply{}
	for _, id := range in.IDs {
		if img, ok := g.images[id]; ok {
			reply.Images = append(reply.Images, img)
		}
	}
	return reply, nil
}

func (s *server) GetThumbnailByLongestSideSet(ctx context.Context, in *remote.ThumbnailsRequest) (*remote.ThumbnailsReply, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	s.sleep(ctx)

	g := s.g
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failThumbs != nil {
		return nil, status.Error(codes.Internal, g.failThumbs.Error())
	}

	g.lastSize = in.LongestSide
	g.lastGroups = append(g.lastGroups, in.Group)

	reply := &remote.ThumbnailsReply{Thumbnails: map[int64][]byte{}}
	for _, id := range in.PixelsIDs {
		if thumb, ok := g.thumbnails[id]; ok {
			reply.Thumbnails[id] = thumb
		}
	}
	return reply, nil
}

func (s *server) CloseSession(ctx context.Context, _ *remote.CloseSessionRequest) (*remote.CloseSessionReply, error) {
	handle, err := handleFrom(ctx)
	if err != nil {
		return nil, err
	}

	g := s.g
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.open[handle]; !ok {
		return nil, status.Error(codes.Unauthenticated, "unknown handle")
	}
	delete(g.open, handle)
	g.closes++
	return &remote.CloseSessionReply{}, nil
}

func (s *server) authorize(ctx context.Context) error {
	handle, err := handleFrom(ctx)
	if err != nil {
		return err
	}
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if _, ok := s.g.open[handle]; !ok {
		return status.Error(codes.Unauthenticated, "unknown handle")
	}
	return nil
}

func (s *server) sleep(ctx context.Context) {
	s.g.mu.Lock()
	d := s.g.delay
	s.g.mu.Unlock()
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func handleFrom(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "no metadata")
	}
	vals := md.Get(remote.HandleMetadataKey)
	if len(vals) == 0 || vals[0] == "" {
		return "", status.Error(codes.Unauthenticated, "no session handle")
	}
	return vals[0], nil
}
