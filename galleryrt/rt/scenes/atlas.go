package scenes

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// AtlasGlyphs is the number of ASCII codes in the atlas.
const AtlasGlyphs = 128

// Atlas is a one-channel sprite sheet holding one glyph per ASCII code,
// stacked vertically: code c occupies rows [c*GlyphHeight, (c+1)*GlyphHeight).
type Atlas struct {
	GlyphWidth  int
	GlyphHeight int
	Pixels      []byte
}

// NewAtlas rasterizes a fixed-width face. Codes below the space and codes
// the face lacks stay empty.
func NewAtlas(face font.Face) *Atlas {
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := metrics.Height.Ceil()
	adv, _ := face.GlyphAdvance('M')
	width := adv.Ceil()

	img := image.NewAlpha(image.Rect(0, 0, width, height*AtlasGlyphs))
	for c := ' '; c < AtlasGlyphs; c++ {
		dot := fixed.P(0, int(c)*height+ascent)
		dr, mask, mp, _, ok := face.Glyph(dot, c)
		if !ok {
			continue
		}
		draw.Draw(img, dr, mask, mp, draw.Src)
	}
	return &Atlas{
		GlyphWidth:  width,
		GlyphHeight: height,
		Pixels:      img.Pix,
	}
}

// DefaultAtlas is built from the 7x13 basic font.
func DefaultAtlas() *Atlas {
	return NewAtlas(basicfont.Face7x13)
}

func (a *Atlas) Width() uint32  { return uint32(a.GlyphWidth) }
func (a *Atlas) Height() uint32 { return uint32(a.GlyphHeight * AtlasGlyphs) }

// Coverage returns the pixel of glyph c at (x, y) inside its cell.
func (a *Atlas) Coverage(c byte, x, y int) byte {
	return a.Pixels[(int(c)*a.GlyphHeight+y)*a.GlyphWidth+x]
}
