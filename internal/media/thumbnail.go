// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"fmt"
	"image"
	"log"
	"os/exec"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// Encoder turns a resized image into bytes on disk. Production wires
// cwebpEncoder; tests can substitute a fake.
type Encoder interface {
	Encode(ctx context.Context, img image.Image, dstPath string, quality int) error
}

// cwebpEncoder shells out to the cwebp binary, matching the spec's framing
// of the image encoder as an external tool rather than a cgo binding.
type cwebpEncoder struct {
	binPath string
}

func (e *cwebpEncoder) Encode(ctx context.Context, img image.Image, dstPath string, quality int) error {
	tmp := dstPath + ".src.png"
	if err := imaging.Save(img, tmp); err != nil {
		return fmt.Errorf("stage source for cwebp: %w", err)
	}
	cmd := exec.CommandContext(ctx, e.binPath, "-q", fmt.Sprintf("%d", quality), tmp, "-o", dstPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("cwebp: %w: %s", err, out)
	}
	return nil
}

// Thumbnailer generates the size ladder of WebP derivatives for an image
// upload, batching ThumbnailBatch sizes at a time to bound peak memory.
type Thumbnailer struct {
	storage *Storage
	encoder Encoder
	sizes   []int
	batch   int
	quality int
}

// NewThumbnailer builds a Thumbnailer over a cwebp-backed Encoder.
func NewThumbnailer(storage *Storage, cwebpPath string, sizes []int, batch, quality int) *Thumbnailer {
	if batch <= 0 {
		batch = 2
	}
	return &Thumbnailer{
		storage: storage,
		encoder: &cwebpEncoder{binPath: cwebpPath},
		sizes:   sizes,
		batch:   batch,
		quality: quality,
	}
}

// Generate produces every requested size for basename from src, skipping
// sizes whose edge exceeds the source's longest edge and sizes whose output
// file already exists. Failures for an individual size are logged and
// swallowed: thumbnail generation is a non-critical enhancement of the
// upload response.
func (t *Thumbnailer) Generate(ctx context.Context, src image.Image, basename string) error {
	bounds := src.Bounds()
	longest := bounds.Dx()
	if bounds.Dy() > longest {
		longest = bounds.Dy()
	}

	var pending []int
	for _, size := range t.sizes {
		if size > longest {
			continue
		}
		dst := t.storage.ThumbnailPath(size, basename)
		if exists, _ := afeExists(t.storage, dst); exists {
			continue
		}
		pending = append(pending, size)
	}

	for start := 0; start < len(pending); start += t.batch {
		end := start + t.batch
		if end > len(pending) {
			end = len(pending)
		}
		if err := t.generateBatch(ctx, src, basename, pending[start:end]); err != nil {
			return err
		}
		if end < len(pending) {
			time.Sleep(50 * time.Millisecond)
		}
	}
	return nil
}

func (t *Thumbnailer) generateBatch(ctx context.Context, src image.Image, basename string, sizes []int) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, size := range sizes {
		size := size
		g.Go(func() error {
			resized := imaging.Fit(src, size, size, imaging.Lanczos)
			dst := t.storage.ThumbnailPath(size, basename)
			if err := t.storage.Fs.MkdirAll(dirOf(dst), 0o755); err != nil {
				log.Printf("media: mkdir thumbnail dir for %s/%d: %v", basename, size, err)
				return nil
			}
			full, err := absPathFor(t.storage, dst)
			if err != nil {
				log.Printf("media: resolve thumbnail path for %s/%d: %v", basename, size, err)
				return nil
			}
			if err := t.encoder.Encode(gctx, resized, full, t.quality); err != nil {
				log.Printf("media: thumbnail %d for %s failed: %v", size, basename, err)
			}
			return nil
		})
	}
	return g.Wait()
}
