package avatarsvc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/mkrupp/itemcatalog/internal/domain"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
)

//nolint:gochecknoglobals
var (
	imageExtTypes = map[string]string{
		".jpg":  MIMETypeJPEG,
		".jpeg": MIMETypeJPEG,
		".png":  MIMETypePNG,
	}

	imageTypeExts = map[string]string{
		MIMETypeJPEG: ".jpg",
		MIMETypePNG:  ".png",
	}

	imageExtHeaders = map[string][]string{
		MIMETypeJPEG: {"\xFF\xD8\xFF"},
		MIMETypePNG:  {"\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"},
	}

	imageDecoders = map[string]func(io.Reader) (image.Image, error){
		MIMETypeJPEG: jpeg.Decode,
		MIMETypePNG:  png.Decode,
	}

	imageConfigDecoders = map[string]func(io.Reader) (image.Config, error){
		MIMETypeJPEG: jpeg.DecodeConfig,
		MIMETypePNG:  png.DecodeConfig,
	}

	imageEncoders = map[string]func(io.Writer, image.Image) error{
		MIMETypeJPEG: func(w io.Writer, i image.Image) error { return jpeg.Encode(w, i, nil) },
		MIMETypePNG:  png.Encode,
	}
)

// AllowedExt reports whether filename has one of the accepted image extensions.
func AllowedExt(filename string) bool {
	_, ok := imageExtTypes[strings.ToLower(filepath.Ext(filename))]

	return ok
}

// MIMETypeOf returns the content type of an avatar by its file name.
func MIMETypeOf(filename string) string {
	if mimeType, ok := imageExtTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mimeType
	}

	return "application/octet-stream"
}

// checkUpload validates extension and magic header of an uploaded image and returns its type.
func checkUpload(filename string, data []byte) (string, error) {
	filenameExt := strings.ToLower(filepath.Ext(filename))

	imageType, ok := imageExtTypes[filenameExt]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, filenameExt)
	}

	for _, header := range imageExtHeaders[imageType] {
		if bytes.HasPrefix(data, []byte(header)) {
			return imageType, nil
		}
	}

	return "", fmt.Errorf("%w: %q", domain.ErrImageTypeMismatch, filenameExt)
}

// sniffType detects the image type of data by its magic header.
func sniffType(data []byte) (string, error) {
	for imageType, headers := range imageExtHeaders {
		for _, header := range headers {
			if bytes.HasPrefix(data, []byte(header)) {
				return imageType, nil
			}
		}
	}

	return "", domain.ErrImageTypeNotSupported
}

func getDecoderByType(mimeType string) (func(io.Reader) (image.Image, error), error) {
	decoder, ok := imageDecoders[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, mimeType)
	}

	return decoder, nil
}

func getConfigDecoderByType(mimeType string) (func(io.Reader) (image.Config, error), error) {
	decoder, ok := imageConfigDecoders[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, mimeType)
	}

	return decoder, nil
}

func getEncoderByType(mimeType string) (func(io.Writer, image.Image) error, error) {
	encoder, ok := imageEncoders[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, mimeType)
	}

	return encoder, nil
}
