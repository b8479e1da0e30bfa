package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Cover art arrives as whatever bytes were embedded in the tag, so jpeg,
// png, bmp, and webp decoders are all registered above.

// resizeCoverArt decodes raw art bytes and scales them to a size×size
// tile.
func resizeCoverArt(artData []byte, size int) (image.Image, error) {
	if len(artData) == 0 {
		return nil, fmt.Errorf("no art data")
	}

	img, _, err := image.Decode(bytes.NewReader(artData))
	if err != nil {
		return nil, fmt.Errorf("decode artwork: %w", err)
	}

	srcBounds := img.Bounds()
	dc := gg.NewContext(size, size)
	sx := float64(size) / float64(srcBounds.Dx())
	sy := float64(size) / float64(srcBounds.Dy())
	dc.Scale(sx, sy)
	dc.DrawImage(img, 0, 0)
	return dc.Image(), nil
}

// placeholderArt renders the default tile shown for songs without
// embedded art.
func placeholderArt(size int) image.Image {
	dc := gg.NewContext(size, size)
	dc.SetHexColor("#333333")
	dc.Clear()
	dc.SetHexColor("#666666")
	dc.DrawRectangle(float64(size)/4, float64(size)/4, float64(size)/2, float64(size)/2)
	dc.Stroke()
	return dc.Image()
}

// saveArtPNG writes a cover tile to disk.
func saveArtPNG(path string, img image.Image) error {
	return gg.SavePNG(path, img)
}
