package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/marmos91/thumbgate/internal/telemetry"
)

// GRPCDialer joins sessions on an OMERO gateway over one shared gRPC
// connection. Sessions are never shared; the connection is.
type GRPCDialer struct {
	conn *grpc.ClientConn
}

// Dial creates a dialer for cfg. The connection is established lazily.
func Dial(cfg *Config, opts ...grpc.DialOption) (*GRPCDialer, error) {
	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12})
	}
	target := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return NewGRPCDialer(target, append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)...)
}

// NewGRPCDialer creates a dialer for an arbitrary gRPC target.
func NewGRPCDialer(target string, opts ...grpc.DialOption) (*GRPCDialer, error) {
	opts = append([]grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway client for %s: %w", target, err)
	}
	return &GRPCDialer{conn: conn}, nil
}

// JoinSession attaches to the existing session identified by key.
func (d *GRPCDialer) JoinSession(ctx context.Context, key string) (Session, error) {
	var reply JoinSessionReply
	if err := d.conn.Invoke(ctx, fullMethod(MethodJoinSession), &JoinSessionRequest{SessionKey: key}, &reply); err != nil {
		return nil, joinError(err)
	}
	if reply.Handle == "" {
		return nil, fmt.Errorf("%w: empty session handle", ErrSessionNotFound)
	}
	return &grpcSession{conn: d.conn, key: key, handle: reply.Handle}, nil
}

// Close tears down the shared connection.
func (d *GRPCDialer) Close() error {
	return d.conn.Close()
}

type grpcSession struct {
	conn   *grpc.ClientConn
	key    string
	handle string
	closed atomic.Bool
}

func (s *grpcSession) Key() string { return s.key }

func (s *grpcSession) FindImages(ctx context.Context, ids []int64) ([]Image, error) {
	ctx, span := telemetry.StartRemoteSpan(ctx, telemetry.SpanFindImages, telemetry.ImageCount(len(ids)))
	defer span.End()

	var reply FindImagesReply
	if err := s.invoke(ctx, MethodFindImages, &FindImagesRequest{IDs: ids, Group: AllGroups}, &reply); err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	return reply.Images, nil
}

func (s *grpcSession) ThumbnailsByLongestSide(ctx context.Context, size int, pixelsIDs []int64, group int64) (map[int64][]byte, error) {
	ctx, span := telemetry.StartRemoteSpan(ctx, telemetry.SpanThumbnails,
		telemetry.LongestSide(size), telemetry.ImageCount(len(pixelsIDs)), telemetry.GroupID(group))
	defer span.End()

	var reply ThumbnailsReply
	req := &ThumbnailsRequest{LongestSide: size, PixelsIDs: pixelsIDs, Group: group}
	if err := s.invoke(ctx, MethodThumbnails, req, &reply); err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	if reply.Thumbnails == nil {
		reply.Thumbnails = map[int64][]byte{}
	}
	return reply.Thumbnails, nil
}

// Close releases the server-side session handle. Closing twice is a no-op.
func (s *grpcSession) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx = metadata.AppendToOutgoingContext(ctx, HandleMetadataKey, s.handle)
	return callError(s.conn.Invoke(ctx, fullMethod(MethodCloseSession), &CloseSessionRequest{}, &CloseSessionReply{}))
}

func (s *grpcSession) invoke(ctx context.Context, method string, req, reply any) error {
	if s.closed.Load() {
		return ErrClosed
	}
	ctx = metadata.AppendToOutgoingContext(ctx, HandleMetadataKey, s.handle)
	return callError(s.conn.Invoke(ctx, fullMethod(method), req, reply))
}

func joinError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrPermissionDenied, st.Message())
	case codes.NotFound, codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrSessionNotFound, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	default:
		return fmt.Errorf("join session: %w", err)
	}
}

func callError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrPermissionDenied, st.Message())
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrSessionNotFound, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	default:
		return err
	}
}
