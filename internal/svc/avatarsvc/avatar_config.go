package avatarsvc

import "time"

// DefaultMaxPixels is used when AvatarConfig.MaxPixels is not set.
const DefaultMaxPixels int64 = 4096 * 4096

// AvatarConfig holds configuration parameters for the avatar service.
type AvatarConfig struct {
	// MaxSize is the largest accepted image in bytes
	MaxSize int64 `env:"MAX_SIZE" default:"5242880"` // 5 MiB

	// MaxPixels bounds width*height of an image before it is decoded. 0 uses DefaultMaxPixels
	MaxPixels int64 `env:"MAX_PIXELS" default:"16777216"` // 4096x4096

	// Width scales wider images down to this width. 0 keeps the original size
	Width int `env:"WIDTH" default:"250"`

	// Interpolator specifies the image scaling algorithm to use.
	// Valid values are: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"INTERPOLATOR" default:"catmullrom"`

	// FetchTimeout bounds downloads of third-party profile pictures
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" default:"10s"`
}
