package slide

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/cocosip/go-wsi/jpegcodec"
)

// Shared stateless decoder. DecodeAll is safe for concurrent use.
var zstdDecoder = mustNewZstdDecoder()

func mustNewZstdDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	return dec
}

// decodePayload converts a stored tile payload into BGRA pixels. The
// returned buffer may alias p.Data for raw payloads; callers treat it as
// read-only.
func decodePayload(p TilePayload) (bgra []byte, width, height int, err error) {
	switch p.Format {
	case FormatRaw:
		if p.Width <= 0 || p.Height <= 0 || len(p.Data) != p.Width*p.Height*4 {
			return nil, 0, 0, fmt.Errorf("raw payload %dx%d with %d bytes: %w",
				p.Width, p.Height, len(p.Data), ErrInvalidBuffer)
		}
		return p.Data, p.Width, p.Height, nil
	case FormatRawZstd:
		plain, err := zstdDecoder.DecodeAll(p.Data, nil)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("zstd payload: %w", err)
		}
		if p.Width <= 0 || p.Height <= 0 || len(plain) != p.Width*p.Height*4 {
			return nil, 0, 0, fmt.Errorf("zstd payload %dx%d decoded to %d bytes: %w",
				p.Width, p.Height, len(plain), ErrInvalidBuffer)
		}
		return plain, p.Width, p.Height, nil
	case FormatJPEG:
		return jpegcodec.Decode(p.Data)
	case FormatPNG:
		img, err := png.Decode(bytes.NewReader(p.Data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("png payload: %w", err)
		}
		b, w, h := jpegcodec.FromImage(img)
		return b, w, h, nil
	case FormatBMP:
		img, err := bmp.Decode(bytes.NewReader(p.Data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("bmp payload: %w", err)
		}
		b, w, h := jpegcodec.FromImage(img)
		return b, w, h, nil
	case FormatTIFF:
		img, err := tiff.Decode(bytes.NewReader(p.Data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("tiff payload: %w", err)
		}
		b, w, h := jpegcodec.FromImage(img)
		return b, w, h, nil
	case FormatHEVC:
		return nil, 0, 0, fmt.Errorf("hevc payload: %w", ErrUnsupportedPayload)
	default:
		return nil, 0, 0, fmt.Errorf("payload format %d: %w", p.Format, ErrUnsupportedPayload)
	}
}
