// Package output holds named image outputs that detectors publish to.
package output

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// ErrNoImage is returned when a pin has not been updated yet.
var ErrNoImage = errors.New("pin has no image")

// Pin is a named image output. Update stores a copy of the published image so
// the publisher may reuse its buffer.
type Pin struct {
	Name        string
	Description string

	mu      sync.RWMutex
	img     gocv.Mat
	has     bool
	updated time.Time
	updates int64
}

// NewPin creates an empty pin.
func NewPin(name, description string) *Pin {
	return &Pin{Name: name, Description: description}
}

// Update replaces the pin's image with a copy of img.
func (p *Pin) Update(img gocv.Mat, at time.Time) {
	clone := img.Clone()

	p.mu.Lock()
	if p.has {
		p.img.Close()
	}
	p.img = clone
	p.has = true
	p.updated = at
	p.updates++
	p.mu.Unlock()
}

// Latest returns a copy of the current image. The caller owns the copy.
func (p *Pin) Latest() (gocv.Mat, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.has {
		return gocv.Mat{}, false
	}
	return p.img.Clone(), true
}

// Updated returns the timestamp of the last update.
func (p *Pin) Updated() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updated
}

// Updates returns how many times the pin has been updated.
func (p *Pin) Updates() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updates
}

// SavePNG writes the current image to path, adding a .png extension when the
// path has none.
func (p *Pin) SavePNG(path string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.has {
		return fmt.Errorf("%s: %w", p.Name, ErrNoImage)
	}

	img, err := p.img.ToImage()
	if err != nil {
		return fmt.Errorf("convert %s: %w", p.Name, err)
	}
	if filepath.Ext(path) == "" {
		path += ".png"
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save %s: %w", p.Name, err)
	}
	return nil
}

// FileName returns a snapshot file name for the pin, e.g.
// "composite-markers-000042.png".
func (p *Pin) FileName(frame int64) string {
	slug := strings.ToLower(strings.Join(strings.Fields(p.Description), "-"))
	if slug == "" {
		slug = "pin"
	}
	return fmt.Sprintf("%s-%06d.png", slug, frame)
}

// Close releases the stored image.
func (p *Pin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.has {
		return nil
	}
	p.has = false
	return p.img.Close()
}
