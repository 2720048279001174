// Package qr finds QR payloads in images.
package qr

import (
	"image"
	"image/color"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder runs one decode attempt over an image.
type Decoder interface {
	Decode(img image.Image) (string, bool)
}

// ZXing decodes with gozxing, trying the image as captured first and a
// colour-inverted copy second. A ZXing value is not safe for concurrent
// use: the inversion buffer is reused between calls.
type ZXing struct {
	reader   gozxing.Reader
	hints    map[gozxing.DecodeHintType]interface{}
	inverted *image.Gray
}

func NewZXing() *ZXing {
	return &ZXing{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (d *ZXing) Decode(img image.Image) (string, bool) {
	if text, ok := d.decode(img); ok {
		return text, true
	}
	return d.decode(d.invert(img))
}

func (d *ZXing) decode(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	defer d.reader.Reset()
	res, err := d.reader.Decode(bmp, d.hints)
	if err != nil || res == nil {
		return "", false
	}
	text := res.GetText()
	return text, text != ""
}

// invert writes the inverted luminance of img into the reusable buffer.
func (d *ZXing) invert(img image.Image) *image.Gray {
	b := img.Bounds()
	if d.inverted == nil || d.inverted.Bounds() != b {
		d.inverted = image.NewGray(b)
	}
	dst := d.inverted

	if rgba, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			si := rgba.PixOffset(b.Min.X, y)
			di := dst.PixOffset(b.Min.X, y)
			for x := 0; x < b.Dx(); x++ {
				p := rgba.Pix[si : si+3 : si+3]
				// Rec. 601 luma, integer form.
				lum := (299*uint32(p[0]) + 587*uint32(p[1]) + 114*uint32(p[2])) / 1000
				dst.Pix[di] = 255 - uint8(lum)
				si += 4
				di++
			}
		}
		return dst
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			dst.SetGray(x, y, color.Gray{Y: 255 - g.Y})
		}
	}
	return dst
}

// Encode renders text as a square QR code of the given pixel size.
func Encode(text string, size int) (image.Image, error) {
	m, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, err
	}
	return m, nil
}
