package lsb

import "fmt"

// Channels is the number of samples per pixel. Carriers are always RGB.
const Channels = 3

// Grid is an RGB pixel grid of 8-bit samples. Pix holds Height*Width*Channels
// samples in the order given by SampleIndex.
type Grid struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewGrid allocates a zeroed grid.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}
}

// SampleIndex returns the position of channel c of the pixel at row y, column x
// in the flattened sample sequence: row-major over height, then width, then
// channel. Hide and Extract both walk samples in exactly this order.
func SampleIndex(width, y, x, c int) int {
	return (y*width+x)*Channels + c
}

// Samples returns the flattened sample sequence. Pix is stored so that sample
// SampleIndex(Width, y, x, c) sits at that offset, which is the order Hide and
// Extract walk. The slice aliases g.Pix.
func (g *Grid) Samples() []uint8 {
	return g.Pix[:g.Capacity()]
}

// Capacity is the number of samples, i.e. the number of bits the grid can carry.
func (g *Grid) Capacity() int {
	return g.Width * g.Height * Channels
}

// Validate checks that the dimensions agree with the sample buffer.
func (g *Grid) Validate() error {
	if g == nil {
		return fmt.Errorf("nil grid")
	}
	if g.Width < 0 || g.Height < 0 {
		return fmt.Errorf("invalid grid dimensions %dx%d", g.Width, g.Height)
	}
	if len(g.Pix) != g.Capacity() {
		return fmt.Errorf("grid %dx%d needs %d samples, has %d", g.Width, g.Height, g.Capacity(), len(g.Pix))
	}
	return nil
}

// Clone returns an independent copy of g.
func (g *Grid) Clone() *Grid {
	pix := make([]uint8, len(g.Pix))
	copy(pix, g.Pix)
	return &Grid{Width: g.Width, Height: g.Height, Pix: pix}
}

// At returns the three samples of the pixel at (x, y).
func (g *Grid) At(x, y int) (r, gr, b uint8) {
	i := SampleIndex(g.Width, y, x, 0)
	return g.Pix[i], g.Pix[i+1], g.Pix[i+2]
}

// Set stores the three samples of the pixel at (x, y).
func (g *Grid) Set(x, y int, r, gr, b uint8) {
	i := SampleIndex(g.Width, y, x, 0)
	g.Pix[i], g.Pix[i+1], g.Pix[i+2] = r, gr, b
}
