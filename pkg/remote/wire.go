package remote

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Service and method names of the OMERO gateway.
const (
	ServiceName = "omero.gateway.v1.Gateway"

	MethodJoinSession  = "JoinSession"
	MethodFindImages   = "FindImages"
	MethodThumbnails   = "GetThumbnailByLongestSideSet"
	MethodCloseSession = "CloseSession"

	// HandleMetadataKey carries the joined session handle on every call
	// after JoinSession.
	HandleMetadataKey = "x-omero-session-handle"
)

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

type JoinSessionRequest struct {
	SessionKey string `json:"sessionKey"`
}

type JoinSessionReply struct {
	Handle  string `json:"handle"`
	UserID  int64  `json:"userId"`
	GroupID int64  `json:"groupId"`
}

type FindImagesRequest struct {
	IDs   []int64 `json:"ids"`
	Group string  `json:"group"`
}

type FindImagesReply struct {
	Images []Image `json:"images"`
}

type ThumbnailsRequest struct {
	LongestSide int     `json:"longestSide"`
	PixelsIDs   []int64 `json:"pixelsIds"`
	Group       int64   `json:"group"`
}

type ThumbnailsReply struct {
	Thumbnails map[int64][]byte `json:"thumbnails"`
}

type CloseSessionRequest struct{}

type CloseSessionReply struct{}

// codecName is the gRPC content subtype: application/grpc+json.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
