package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/pkg/api/middleware"
	"github.com/marmos91/thumbgate/pkg/bus"
	"github.com/marmos91/thumbgate/pkg/thumbnail"
)

// Dispatcher sends a message and waits for its reply. *bus.Bus satisfies it.
type Dispatcher interface {
	Request(ctx context.Context, endpoint string, body []byte, opts ...bus.SendOption) ([]byte, error)
}

var callbackPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

// ThumbnailHandler turns thumbnail requests into dispatched messages.
type ThumbnailHandler struct {
	dispatcher Dispatcher
}

// NewThumbnailHandler creates a handler dispatching through d.
func NewThumbnailHandler(d Dispatcher) *ThumbnailHandler {
	return &ThumbnailHandler{dispatcher: d}
}

// RenderThumbnail handles the render_thumbnail and render_birds_eye_view
// routes. Responds with image/jpeg.
func (h *ThumbnailHandler) RenderThumbnail(w http.ResponseWriter, r *http.Request) {
	imageID, err := strconv.ParseInt(chi.URLParam(r, "imageId"), 10, 64)
	if err != nil {
		http.Error(w, "invalid image id", http.StatusBadRequest)
		return
	}
	longestSide, ok := longestSideParam(w, r)
	if !ok {
		return
	}

	req := thumbnail.RenderRequest{
		LongestSide: longestSide,
		ImageID:     imageID,
		SessionKey:  middleware.SessionKey(r.Context()),
	}
	if raw := r.URL.Query().Get("rdefId"); raw != "" {
		rdefID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid rdefId", http.StatusBadRequest)
			return
		}
		req.RenderingDefID = &rdefID
	}

	reply, ok := h.dispatch(w, r, thumbnail.EndpointRenderThumbnail, req)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(reply)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(reply)
}

// GetThumbnails handles the get_thumbnails routes. Image IDs come from
// repeated id query parameters; each maps to a JPEG data URI or null.
func (h *ThumbnailHandler) GetThumbnails(w http.ResponseWriter, r *http.Request) {
	longestSide, ok := longestSideParam(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	callback := query.Get("callback")
	if callback != "" && !callbackPattern.MatchString(callback) {
		http.Error(w, "invalid callback", http.StatusBadRequest)
		return
	}

	rawIDs := query["id"]
	imageIDs := make([]int64, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid image id", http.StatusBadRequest)
			return
		}
		imageIDs = append(imageIDs, id)
	}

	reply, ok := h.dispatch(w, r, thumbnail.EndpointGetThumbnails, thumbnail.BatchRequest{
		LongestSide: longestSide,
		ImageIDs:    imageIDs,
		SessionKey:  middleware.SessionKey(r.Context()),
	})
	if !ok {
		return
	}

	thumbs, err := thumbnail.DecodeBatchReply(reply)
	if err != nil {
		logger.ErrorCtx(r.Context(), "undecodable get_thumbnails reply", logger.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	out := make(map[string]*string, len(imageIDs))
	for _, id := range imageIDs {
		key := strconv.FormatInt(id, 10)
		if data, ok := thumbs[id]; ok {
			uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
			out[key] = &uri
		} else {
			out[key] = nil
		}
	}

	body, err := json.Marshal(out)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if callback != "" {
		w.Header().Set("Content-Type", "application/javascript")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(callback + "("))
		_, _ = w.Write(body)
		_, _ = w.Write([]byte(");"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// dispatch sends payload to endpoint. On failure it writes the mapped
// status with an empty body and returns false.
func (h *ThumbnailHandler) dispatch(w http.ResponseWriter, r *http.Request, endpoint string, payload any) ([]byte, bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return nil, false
	}

	reply, err := h.dispatcher.Request(r.Context(), endpoint, body)
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// client went away; nobody is left to read a status
		logger.DebugCtx(r.Context(), "client disconnected", logger.KeyEndpoint, endpoint)
		return nil, false
	}
	if err != nil {
		code := bus.Code(err)
		logger.DebugCtx(r.Context(), "dispatch failed",
			logger.KeyEndpoint, endpoint, logger.KeyFailureCode, int(code), logger.Err(err))
		w.WriteHeader(code.HTTPStatus())
		return nil, false
	}
	return reply, true
}

func longestSideParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "longestSide")
	if raw == "" {
		return thumbnail.DefaultLongestSide, true
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		http.Error(w, "invalid longest side", http.StatusBadRequest)
		return 0, false
	}
	return size, true
}
