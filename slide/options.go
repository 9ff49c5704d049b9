package slide

import (
	"runtime"

	"github.com/cocosip/go-wsi/jpegcodec"
)

// Option configures a handle at open time.
type Option func(*config)

type config struct {
	format  string
	workers int
	quality int
}

func defaultConfig() config {
	return config{
		workers: runtime.NumCPU(),
		quality: jpegcodec.DefaultQuality,
	}
}

// WithFormat forces a specific driver instead of detecting one from the
// path extension.
func WithFormat(name string) Option {
	return func(c *config) {
		c.format = name
	}
}

// WithWorkers sets the tile worker count for this handle. Values below 1
// keep the default, the number of available CPU cores.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithJPEGQuality sets the initial JPEG encode quality, valid range
// [0,99]. Out-of-range values are rejected by Open.
func WithJPEGQuality(q int) Option {
	return func(c *config) {
		c.quality = q
	}
}
