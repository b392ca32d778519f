package thumbnail

import "encoding/json"

// DecodeBatchReply parses a get_thumbnails reply into image ID to JPEG.
func DecodeBatchReply(body []byte) (map[int64][]byte, error) {
	var thumbs map[int64][]byte
	if err := json.Unmarshal(body, &thumbs); err != nil {
		return nil, err
	}
	return thumbs, nil
}
