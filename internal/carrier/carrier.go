// Package carrier converts between encoded images and lsb.Grid values.
//
// Any format the decoders understand may be read, but grids are only ever
// written with lossless encoders: a lossy re-encode rewrites sample LSBs and
// destroys whatever was hidden in them.
package carrier

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"ciphercanvas/internal/lsb"
)

// Format is a lossless output container.
type Format string

const (
	FormatPNG  Format = "png"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

var (
	// ErrLossyFormat is returned when asked to write a lossy container.
	ErrLossyFormat = errors.New("lossy image format would destroy hidden data")
	// ErrUnsupportedFormat is returned for names that map to no known format.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// inputExtensions are the file extensions accepted for carrier images.
var inputExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Supported reports whether filename has an extension Decode can read.
func Supported(filename string) bool {
	return inputExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ParseFormat maps a format name or file extension to an output Format.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "", "png":
		return FormatPNG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "jpg", "jpeg", "webp", "gif":
		return "", fmt.Errorf("%w: %s", ErrLossyFormat, s)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

// Extension returns the file extension, with dot, for f.
func (f Format) Extension() string {
	if f == FormatTIFF {
		return ".tiff"
	}
	return "." + string(f)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "image/png"
	}
}

// Decode reads an image and returns its RGB grid and the decoder's format name.
func Decode(r io.Reader) (*lsb.Grid, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), format, nil
}

// FromImage flattens img into an RGB grid. Samples come from the
// non-premultiplied colour with alpha dropped; paletted and grey images are
// expanded to RGB.
func FromImage(img image.Image) *lsb.Grid {
	b := img.Bounds()
	g := lsb.NewGrid(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < g.Height; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < g.Width; x++ {
				g.Set(x, y, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.RGBA:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				c := src.RGBAAt(b.Min.X+x, b.Min.Y+y)
				if c.A == 0xFF {
					g.Set(x, y, c.R, c.G, c.B)
					continue
				}
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				g.Set(x, y, n.R, n.G, n.B)
			}
		}
	default:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				g.Set(x, y, c.R, c.G, c.B)
			}
		}
	}
	return g
}

// ToImage returns an opaque image holding exactly the grid's samples.
func ToImage(g *lsb.Grid) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			r, gr, b := g.At(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r, gr, b, 0xFF
		}
	}
	return img
}

// Encode writes g to w in the given lossless format.
func Encode(w io.Writer, g *lsb.Grid, format Format) error {
	format, err := ParseFormat(string(format))
	if err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}
	img := ToImage(g)

	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(w, img); err != nil {
			return fmt.Errorf("encode PNG: %w", err)
		}
	case FormatBMP:
		if err := bmp.Encode(w, img); err != nil {
			return fmt.Errorf("encode BMP: %w", err)
		}
	case FormatTIFF:
		if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return fmt.Errorf("encode TIFF: %w", err)
		}
	}
	return nil
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(g *lsb.Grid, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load decodes the image file at path.
func Load(path string) (*lsb.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	g, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Save writes g to path, choosing the format from the file extension.
func Save(path string, g *lsb.Grid) error {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, g, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
