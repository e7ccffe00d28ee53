package qr

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	ModulePx   = 10
	LabelBand  = 40
	LabelGap   = 5
	LabelPoint = 20
)

type RenderOptions struct {
	Level    qrcode.RecoveryLevel // zero value is qrcode.Low
	ModulePx int
	Face     font.Face // nil means basicfont 7x13
}

// DefaultRenderOptions is error correction H (~30% recovery) at 10px per
// module with the bitmap face.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Level: qrcode.Highest, ModulePx: ModulePx}
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.ModulePx <= 0 {
		o.ModulePx = ModulePx
	}
	if o.Face == nil {
		o.Face = basicfont.Face7x13
	}
	return o
}

// LoadFace reads a TrueType/OpenType file at the given point size.
func LoadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// LabelFace returns the configured font, or the bitmap fallback when path is
// empty or unusable.
func LabelFace(path string) font.Face {
	if path == "" {
		return basicfont.Face7x13
	}
	face, err := LoadFace(path, LabelPoint)
	if err != nil {
		log.WithError(err).Warn("label font unavailable, using built-in face")
		return basicfont.Face7x13
	}
	return face
}

// Render draws the QR code for link with label centered in a white band
// beneath it. The code keeps the standard 4-module quiet zone.
func Render(link, label string, opts RenderOptions) (image.Image, error) {
	opts = opts.withDefaults()

	q, err := qrcode.New(link, opts.Level)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	code := q.Image(-opts.ModulePx)
	cb := code.Bounds()

	w, h := cb.Dx(), cb.Dy()
	canvas := image.NewRGBA(image.Rect(0, 0, w, h+LabelBand))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, w, h), code, cb.Min, draw.Src)

	if label != "" {
		d := &font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(color.Black),
			Face: opts.Face,
		}
		textW := d.MeasureString(label).Round()
		ascent := opts.Face.Metrics().Ascent.Ceil()
		d.Dot = fixed.P((w-textW)/2, h+LabelGap+ascent)
		d.DrawString(label)
	}

	return canvas, nil
}

func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
