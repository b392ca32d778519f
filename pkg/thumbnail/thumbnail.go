// Package thumbnail implements the dispatch endpoints that render image
// thumbnails through a joined remote session.
package thumbnail

import (
	"context"
	"errors"
	"sort"

	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/pkg/remote"
)

// Endpoint names on the bus
const (
	EndpointRenderThumbnail = "omero.render_thumbnail"
	EndpointGetThumbnails   = "omero.get_thumbnails"
)

// DefaultLongestSide is used when a request does not size the thumbnail.
const DefaultLongestSide = 96

// errNoImages means none of the requested images exist or are readable.
var errNoImages = errors.New("no images found")

// RenderRequest is the omero.render_thumbnail payload.
type RenderRequest struct {
	LongestSide    int    `json:"longestSide"`
	ImageID        int64  `json:"imageId"`
	SessionKey     string `json:"omeroSessionKey"`
	RenderingDefID *int64 `json:"renderingDefId"`
}

// BatchRequest is the omero.get_thumbnails payload.
type BatchRequest struct {
	LongestSide int     `json:"longestSide"`
	ImageIDs    []int64 `json:"imageIds"`
	SessionKey  string  `json:"omeroSessionKey"`
}

// Thumbnails loads the images and renders their thumbnails, keyed by image
// ID. Images without a thumbnail are absent from the result. Images are
// rendered one call per group since the server scopes the call to a group.
func Thumbnails(ctx context.Context, s remote.Session, longestSide int, imageIDs []int64) (map[int64][]byte, error) {
	if longestSide <= 0 {
		longestSide = DefaultLongestSide
	}

	images, err := s.FindImages(ctx, imageIDs)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		logger.DebugCtx(ctx, "no images found", "image_ids", imageIDs)
		return nil, errNoImages
	}

	imageByPixels := make(map[int64]int64, len(images))
	pixelsByGroup := make(map[int64][]int64)
	for _, img := range images {
		imageByPixels[img.PixelsID] = img.ID
		pixelsByGroup[img.GroupID] = append(pixelsByGroup[img.GroupID], img.PixelsID)
	}

	groups := make([]int64, 0, len(pixelsByGroup))
	for g := range pixelsByGroup {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	result := make(map[int64][]byte, len(images))
	for _, group := range groups {
		pixelsIDs := pixelsByGroup[group]
		thumbs, err := s.ThumbnailsByLongestSide(ctx, longestSide, pixelsIDs, group)
		if err != nil {
			return nil, err
		}
		for pixelsID, data := range thumbs {
			if imageID, ok := imageByPixels[pixelsID]; ok {
				result[imageID] = data
			}
		}
	}
	return result, nil
}
