package uploads

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// previewSize is the bounding box previews are fitted into.
const previewSize = 240

// makePreview decodes an uploaded image and renders a small PNG preview
// fitting previewSize on its longer edge. Non-image data is rejected here,
// which doubles as the upload's validation step.
func makePreview(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	preview := imaging.Fit(img, previewSize, previewSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, preview, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
