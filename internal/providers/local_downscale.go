package providers

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

// Downscale is local image processing, not a remote provider call (spec.md
// §4.5, §6 "No provider field (local processing)"): the registry still
// routes it through provider_a/provider_c for provider-selection-table
// uniformity, but invokeLocalDownscale never leaves the process. Grounded on
// the disintegration/imaging usage in the retrieval pack's
// adhtanjung-maukmn-api-alpha/go.mod, the one example repo manifest that
// carries an image-resize dependency.
const (
	bytesPerMB           = 1024 * 1024
	maxDownscaleAttempts = 12
	minDownscaleDim      = 16
)

func invokeLocalDownscale(req Request) (*SyncResult, *AsyncHandle, error) {
	if len(req.InputBytes) == 0 {
		return nil, nil, fmt.Errorf("%w: downscale requires one input image", ErrProviderCall)
	}

	maxSizeMB, _ := req.Extra["max_size_mb"].(float64)
	if maxSizeMB <= 0 {
		maxSizeMB = 2.0
	}
	aspectMode, _ := req.Extra["aspect_ratio_mode"].(string)
	outputFormat, _ := req.Extra["output_format"].(string)

	img, detectedFormat, err := image.Decode(bytes.NewReader(req.InputBytes[0]))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode input image: %v", ErrProviderCall, err)
	}

	if aspectMode == "square" {
		side := img.Bounds().Dx()
		if img.Bounds().Dy() < side {
			side = img.Bounds().Dy()
		}
		img = imaging.CropCenter(img, side, side)
	}

	encode, contentType := downscaleEncoder(outputFormat, detectedFormat)

	limit := int64(maxSizeMB * bytesPerMB)
	out, err := encode(img)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode downscaled image: %v", ErrProviderCall, err)
	}

	for attempt := 0; int64(len(out)) > limit && attempt < maxDownscaleAttempts; attempt++ {
		width := img.Bounds().Dx() * 9 / 10
		height := img.Bounds().Dy() * 9 / 10
		if width < minDownscaleDim || height < minDownscaleDim {
			break
		}
		img = imaging.Resize(img, width, height, imaging.Lanczos)
		out, err = encode(img)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: encode downscaled image: %v", ErrProviderCall, err)
		}
	}

	return &SyncResult{Artifacts: [][]byte{out}, ContentType: contentType}, nil, nil
}

// downscaleEncoder resolves the output_format option (original/jpeg/png,
// spec.md §6) to a concrete encode function and its content type.
func downscaleEncoder(outputFormat, detectedFormat string) (func(image.Image) ([]byte, error), string) {
	format := outputFormat
	if format == "" || format == "original" {
		format = detectedFormat
	}

	switch format {
	case "png":
		return func(img image.Image) ([]byte, error) {
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}, "image/png"
	default:
		return func(img image.Image) ([]byte, error) {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}, "image/jpeg"
	}
}
