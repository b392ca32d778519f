package thumbnail

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/pkg/bus"
	"github.com/marmos91/thumbgate/pkg/remote"
	"github.com/marmos91/thumbgate/pkg/requestctx"
)

// Service serves the thumbnail endpoints. Every message joins its own
// remote session.
type Service struct {
	dialer remote.Dialer
	opts   []requestctx.Option
}

// NewService returns a Service joining sessions through d.
func NewService(d remote.Dialer, opts ...requestctx.Option) *Service {
	return &Service{dialer: d, opts: opts}
}

// Register binds both endpoints on b, running handlers on exec.
func (s *Service) Register(b *bus.Bus, exec bus.Executor) error {
	if err := b.Consumer(EndpointRenderThumbnail, s.RenderThumbnail, exec); err != nil {
		return err
	}
	return b.Consumer(EndpointGetThumbnails, s.GetThumbnails, exec)
}

// RenderThumbnail replies with the JPEG thumbnail of one image.
func (s *Service) RenderThumbnail(ctx context.Context, msg *bus.Message) {
	var req RenderRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		logger.ErrorCtx(ctx, "invalid render_thumbnail payload", logger.Err(err))
		msg.Fail(bus.CodeInternal, "Invalid payload")
		return
	}
	logger.DebugCtx(ctx, "render thumbnail",
		logger.KeyImageID, req.ImageID, logger.KeyLongest, req.LongestSide, logger.SessionKey(req.SessionKey))

	thumbs, err := requestctx.WithSession(ctx, s.dialer, req.SessionKey,
		func(ctx context.Context, sess remote.Session) (map[int64][]byte, error) {
			return Thumbnails(ctx, sess, req.LongestSide, []int64{req.ImageID})
		}, s.opts...)
	if err != nil {
		fail(ctx, msg, err)
		return
	}

	thumb, ok := thumbs[req.ImageID]
	if !ok {
		logger.DebugCtx(ctx, "no thumbnail for image", logger.KeyImageID, req.ImageID)
		msg.Fail(bus.CodeNotFound, "Cannot find Image:"+strconv.FormatInt(req.ImageID, 10))
		return
	}
	msg.Reply(thumb)
}

// GetThumbnails replies with a JSON object of image ID to base64 JPEG.
// Images without a thumbnail are omitted.
func (s *Service) GetThumbnails(ctx context.Context, msg *bus.Message) {
	var req BatchRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		logger.ErrorCtx(ctx, "invalid get_thumbnails payload", logger.Err(err))
		msg.Fail(bus.CodeInternal, "Invalid payload")
		return
	}
	logger.DebugCtx(ctx, "get thumbnails",
		logger.KeyImageCount, len(req.ImageIDs), logger.KeyLongest, req.LongestSide, logger.SessionKey(req.SessionKey))

	thumbs, err := requestctx.WithSession(ctx, s.dialer, req.SessionKey,
		func(ctx context.Context, sess remote.Session) (map[int64][]byte, error) {
			return Thumbnails(ctx, sess, req.LongestSide, req.ImageIDs)
		}, s.opts...)
	if err != nil {
		fail(ctx, msg, err)
		return
	}

	// []byte values encode as base64, int64 keys as decimal strings
	body, err := json.Marshal(thumbs)
	if err != nil {
		logger.ErrorCtx(ctx, "encode thumbnails", logger.Err(err))
		msg.Fail(bus.CodeInternal, "encode thumbnails")
		return
	}
	msg.Reply(body)
}

// fail maps a unit-of-work error onto a failure code. Only a refused or
// unknown session key is a 403; any other join fault is internal.
func fail(ctx context.Context, msg *bus.Message, err error) {
	var joinErr *requestctx.JoinError
	isJoin := errors.As(err, &joinErr)
	refused := errors.Is(err, remote.ErrPermissionDenied) || errors.Is(err, remote.ErrSessionNotFound)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnCtx(ctx, "remote call timed out", logger.Err(err))
		msg.Fail(bus.CodeTimeout, "Remote call timed out")
	case isJoin && refused:
		msg.Fail(bus.CodeForbidden, "Permission denied")
	case isJoin:
		logger.ErrorCtx(ctx, "joining remote session failed", logger.Err(err))
		msg.Fail(bus.CodeInternal, err.Error())
	case errors.Is(err, errNoImages), errors.Is(err, remote.ErrPermissionDenied):
		// unreadable objects are indistinguishable from missing ones
		msg.Fail(bus.CodeNotFound, "Cannot find Images")
	default:
		logger.ErrorCtx(ctx, "retrieving thumbnails failed", logger.Err(err))
		msg.Fail(bus.CodeInternal, err.Error())
	}
}
