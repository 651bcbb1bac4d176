package video

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"golang.org/x/image/draw"
)

// Canvas size matches the dashboard video element.
const (
	CanvasWidth  = 640
	CanvasHeight = 480
)

// Surface receives decoded camera frames.
type Surface interface {
	Draw(frame []byte) error
	Clear()
}

// Canvas letterboxes each frame onto a fixed-size image and keeps the latest one.
type Canvas struct {
	mu    sync.RWMutex
	img   *image.RGBA
	drawn bool
}

func NewCanvas() *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))}
}

// Draw decodes a JPEG and scales it to fit, preserving aspect ratio.
func (c *Canvas) Draw(frame []byte) error {
	src, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	bounds := c.img.Bounds()
	draw.Draw(c.img, bounds, image.Black, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(c.img, fitRect(src.Bounds(), bounds), src, src.Bounds(), draw.Over, nil)
	c.drawn = true
	return nil
}

// Clear blanks the canvas.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	draw.Draw(c.img, c.img.Bounds(), image.Black, image.Point{}, draw.Src)
	c.drawn = false
}

// Snapshot encodes the current canvas. ok is false until a frame is drawn.
func (c *Canvas) Snapshot() (data []byte, ok bool, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.drawn {
		return nil, false, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, c.img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

// fitRect centres src inside dst at the largest scale that fits.
func fitRect(src, dst image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	dw, dh := dst.Dx(), dst.Dy()
	if sw == 0 || sh == 0 {
		return image.Rectangle{}
	}
	scale := min(float64(dw)/float64(sw), float64(dh)/float64(sh))
	w, h := int(float64(sw)*scale), int(float64(sh)*scale)
	x, y := dst.Min.X+(dw-w)/2, dst.Min.Y+(dh-h)/2
	return image.Rect(x, y, x+w, y+h)
}
