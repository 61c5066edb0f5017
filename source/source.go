package source

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/errs"
)

// Channels per pixel (RGB).
const Channels = 3

// BitsPerValue is the width of one channel value on the wire.
const BitsPerValue = 8

// Pixels is a Height x Width x 3 array of 8-bit RGB values in row-major order.
type Pixels struct {
	Height int
	Width  int
	Data   []uint8
}

func NewPixels(height, width int) Pixels {
	return Pixels{Height: height, Width: width, Data: make([]uint8, height*width*Channels)}
}

// Shape is the (height, width, channels) triple.
func (p Pixels) Shape() [3]int {
	return [3]int{p.Height, p.Width, Channels}
}

// ToBits flattens the array and expands every value to 8 bits, MSB first.
func ToBits(p Pixels) []uint8 {
	bits := make([]uint8, 0, len(p.Data)*BitsPerValue)
	for _, v := range p.Data {
		for i := BitsPerValue - 1; i >= 0; i-- {
			bits = append(bits, (v>>i)&1)
		}
	}
	return bits
}

// FromBits groups bits into bytes, MSB first, and reshapes them to
// height x width x 3.
func FromBits(bits []uint8, height, width int) (Pixels, error) {
	if height <= 0 || width <= 0 {
		return Pixels{}, fmt.Errorf("source: image shape %dx%d is not positive: %w", height, width, errs.ErrInvalidInput)
	}
	want := height * width * Channels * BitsPerValue
	if len(bits) != want {
		return Pixels{}, fmt.Errorf("source: %dx%dx%d image needs %d bits, got %d: %w", height, width, Channels, want, len(bits), errs.ErrLengthMismatch)
	}

	p := NewPixels(height, width)
	for i := range p.Data {
		var v uint8
		for _, b := range bits[i*BitsPerValue : (i+1)*BitsPerValue] {
			if b > 1 {
				return Pixels{}, fmt.Errorf("source: bit value %d: %w", b, errs.ErrInvalidInput)
			}
			v = v<<1 | b
		}
		p.Data[i] = v
	}
	return p, nil
}

// FromImage copies an image into RGB pixels, dropping alpha.
func FromImage(img image.Image) Pixels {
	b := img.Bounds()
	p := NewPixels(b.Dy(), b.Dx())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			p.Data[i] = c.R
			p.Data[i+1] = c.G
			p.Data[i+2] = c.B
			i += Channels
		}
	}
	return p
}

// Image renders the pixels as an opaque RGBA image.
func (p Pixels) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			i := (y*p.Width + x) * Channels
			img.SetRGBA(x, y, color.RGBA{R: p.Data[i], G: p.Data[i+1], B: p.Data[i+2], A: 0xff})
		}
	}
	return img
}

// Load decodes a PNG, JPEG or GIF file.
func Load(path string) (Pixels, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pixels{}, fmt.Errorf("source: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return Pixels{}, fmt.Errorf("source: decoding %s: %w", path, err)
	}
	p := FromImage(img)
	log.Infof("Loaded %s image %s: %dx%d (%d bits)", format, path, p.Width, p.Height, len(p.Data)*BitsPerValue)
	return p, nil
}

// Save writes the pixels as a PNG.
func Save(path string, p Pixels) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := png.Encode(f, p.Image()); err != nil {
		f.Close()
		return fmt.Errorf("source: encoding %s: %w", path, err)
	}
	return f.Close()
}
