package storage

import (
	"bytes"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"

	"github.com/dzjyyds666/pdxu/pkg/game"
)

// Thumbnailer renders the campaign.png picture for a new campaign.
type Thumbnailer interface {
	Thumbnail(info *game.Info) ([]byte, error)
}

// Swatch draws a flat square whose color is derived from the player tag,
// so campaigns of the same player look alike.
type Swatch struct {
	Size int
}

func (s Swatch) Thumbnail(info *game.Info) ([]byte, error) {
	size := s.Size
	if size <= 0 {
		size = 32
	}
	h := fnv.New32a()
	h.Write([]byte(info.Tag))
	sum := h.Sum32()
	c := color.RGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
