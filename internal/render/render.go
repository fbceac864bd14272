// Package render composes final map images from a materialized config and
// its background.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	_ "image/gif"  // background decode support
	_ "image/jpeg" // background decode support

	"weathermap/internal/file"
	"weathermap/internal/mapconf"
)

// ErrRender marks renderer failures. The output path is never left holding
// a partially written file: the image is staged in memory and written
// atomically.
var ErrRender = errors.New("render map")

// Renderer turns a materialized config into a composed image at outputPath.
type Renderer interface {
	Render(ctx context.Context, configPath, outputPath string) error
}

// Weathermap draws each LINK of the parsed config as a colored segment
// between its NODE positions, colored by the DEFAULT scale.
type Weathermap struct{}

// NewWeathermap returns the built-in renderer.
func NewWeathermap() *Weathermap { return &Weathermap{} }

func (w *Weathermap) Render(ctx context.Context, configPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	raw, err := os.ReadFile(configPath) //nolint:gosec // path produced by the artifact store
	if err != nil {
		return fmt.Errorf("%w: read config: %v", ErrRender, err)
	}
	m, err := mapconf.Parse(string(raw))
	if err != nil {
		return fmt.Errorf("%w: parse config: %v", ErrRender, err)
	}

	background, err := loadBackground(configPath, m.Background)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}

	bounds := background.Bounds()
	width, height := m.Width, m.Height
	if width <= 0 {
		width = bounds.Dx()
	}
	if height <= 0 {
		height = bounds.Dy()
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, bounds.Sub(bounds.Min), background, bounds.Min, draw.Over)

	scale := m.Scales[mapconf.DefaultScaleName]
	for _, link := range m.Links {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRender, err)
		}
		from, okFrom := m.Nodes[link.From]
		to, okTo := m.Nodes[link.To]
		if !okFrom || !okTo {
			// dangling link, nothing to draw
			continue
		}
		lineWidth := link.Width
		if lineWidth <= 0 {
			lineWidth = 1
		}
		drawSegment(canvas, from.X, from.Y, to.X, to.Y, lineWidth, scale.ColorFor(utilizationFor(link.Name)))
	}

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, canvas); err != nil {
		return fmt.Errorf("%w: encode output: %v", ErrRender, err)
	}
	if err := file.WriteAtomic(outputPath, encoded.Bytes()); err != nil {
		return fmt.Errorf("%w: write output: %v", ErrRender, err)
	}
	return nil
}

func loadBackground(configPath, backgroundRef string) (image.Image, error) {
	if backgroundRef == "" {
		return nil, errors.New("config has no BACKGROUND")
	}
	path := backgroundRef
	if !filepath.IsAbs(path) {
		// BACKGROUND is relative to the config's directory
		path = filepath.Join(filepath.Dir(configPath), path)
	}
	f, err := os.Open(path) //nolint:gosec // path derives from materialized artifacts
	if err != nil {
		return nil, fmt.Errorf("open background: %v", err)
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode background: %v", err)
	}
	return img, nil
}

// utilizationFor derives a stable percentage for a link. Live traffic
// counters are not wired in; a deterministic value keeps re-renders of the
// same config identical.
func utilizationFor(linkName string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(linkName))
	return float64(h.Sum32()%10001) / 100
}
