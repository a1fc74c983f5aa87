package avatarsvc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"

	"github.com/mkrupp/itemcatalog/internal/domain"
)

// ErrUnknownInterpolator is returned when an unsupported interpolation method is specified.
var ErrUnknownInterpolator = errors.New("unknown interpolator")

//nolint:gochecknoglobals
var interpolMap = map[string]draw.Interpolator{
	"nearestneighbor": draw.NearestNeighbor,
	"catmullrom":      draw.CatmullRom,
	"bilinear":        draw.BiLinear,
	"approxbilinear":  draw.ApproxBiLinear,
}

func getInterpolatorByName(name string) (draw.Interpolator, error) {
	interpol, ok := interpolMap[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterpolator, name)
	}

	return interpol, nil
}

// checkDimensions reads the image header and rejects images with more than
// maxPixels pixels before any pixel data is decoded.
func checkDimensions(data []byte, ctype string, maxPixels int64) error {
	decodeConfig, err := getConfigDecoderByType(ctype)
	if err != nil {
		return err
	}

	cfg, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return errors.Join(domain.ErrImageTypeMismatch, fmt.Errorf("decode config: %w", err))
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", domain.ErrImageTypeMismatch, cfg.Width, cfg.Height)
	}

	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return fmt.Errorf("%w: %dx%d pixels", domain.ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	return nil
}

// shrinkImage scales data down to width, keeping the aspect ratio.
// Images that are already narrow enough are returned unchanged.
func shrinkImage(data []byte, ctype string, width int, interpolator string, maxPixels int64) ([]byte, error) {
	if err := checkDimensions(data, ctype, maxPixels); err != nil {
		return nil, err
	}

	decoder, err := getDecoderByType(ctype)
	if err != nil {
		return nil, err
	}

	original, err := decoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := original.Bounds()
	if width <= 0 || bounds.Dx() <= width {
		return data, nil
	}

	interpol, err := getInterpolatorByName(interpolator)
	if err != nil {
		return nil, err
	}

	height := max(1, bounds.Dy()*width/bounds.Dx())
	bitmap := image.NewRGBA(image.Rect(0, 0, width, height))
	interpol.Scale(bitmap, bitmap.Bounds(), original, bounds, draw.Over, nil)

	return encodeImage(bitmap, ctype)
}

func encodeImage(bitmap image.Image, ctype string) ([]byte, error) {
	encoder, err := getEncoderByType(ctype)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	if err := encoder(&buf, bitmap); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	return buf.Bytes(), nil
}

// placeholderImage renders the default avatar, a plain gray square.
func placeholderImage(size int) ([]byte, error) {
	bitmap := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(bitmap, bitmap.Bounds(), image.NewUniform(color.RGBA{R: 0xCC, G: 0xCC, B: 0xCC, A: 0xFF}), image.Point{}, draw.Src)

	return encodeImage(bitmap, MIMETypeJPEG)
}
