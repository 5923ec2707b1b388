// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package media implements the upload, thumbnail, transcode, and cleanup
// pipeline for canvas-attached files.
package media

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Storage wraps an afero filesystem rooted under a data directory, giving
// uploads/thumbnails/transcodes a swappable backing store (the real disk in
// production, a temporary directory in tests). Root holds the real absolute path
// backing Fs, needed only when a subprocess (cwebp, ffmpeg) must be handed a
// real path rather than an afero-relative one.
type Storage struct {
	Fs            afero.Fs
	Root          string
	UploadsDir    string
	ThumbnailsDir string
	TranscodesDir string
}

// NewStorage builds a Storage over the OS filesystem, creating the three
// subdirectories if they do not already exist.
func NewStorage(root, uploadsDir, thumbnailsDir, transcodesDir string) (*Storage, error) {
	fs := afero.NewBasePathFs(afero.NewOsFs(), root)
	for _, dir := range []string{uploadsDir, thumbnailsDir, transcodesDir} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Storage{Fs: fs, Root: root, UploadsDir: uploadsDir, ThumbnailsDir: thumbnailsDir, TranscodesDir: transcodesDir}, nil
}

// afeExists reports whether path exists in storage's filesystem.
func afeExists(s *Storage, path string) (bool, error) {
	return afero.Exists(s.Fs, path)
}

// absPathFor resolves a storage-relative path to a real filesystem path,
// for handing to an external subprocess.
func absPathFor(s *Storage, relPath string) (string, error) {
	return filepath.Join(s.Root, relPath), nil
}

// dirOf returns the parent directory of a storage-relative path.
func dirOf(relPath string) string {
	return filepath.Dir(relPath)
}

// UploadPath builds the relative path for a stored upload.
func (s *Storage) UploadPath(filename string) string {
	return filepath.Join(s.UploadsDir, filename)
}

// ThumbnailPath builds the relative path for a size/basename thumbnail.
func (s *Storage) ThumbnailPath(size int, basename string) string {
	return filepath.Join(s.ThumbnailsDir, fmt.Sprintf("%d", size), basename+".webp")
}

// TranscodePath builds the relative path for a transcoded derivative.
func (s *Storage) TranscodePath(basename, format string) string {
	return filepath.Join(s.TranscodesDir, basename+"."+format)
}

// GenerateFilename mints the timestamp-random upload filename described by
// the upload contract: <unixMillis>-<base36rand>.<ext>.
func GenerateFilename(nowMillis int64, origExt string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(36*36*36*36*36*36))
	if err != nil {
		return "", fmt.Errorf("generate filename: %w", err)
	}
	return fmt.Sprintf("%d-%s%s", nowMillis, toBase36(n.Int64()), origExt), nil
}

func toBase36(n int64) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}
	var b strings.Builder
	for n > 0 {
		b.WriteByte(digits[n%36])
		n /= 36
	}
	s := b.String()
	// digits were appended least-significant first
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// HashReader returns the lowercase hex SHA-256 digest of r, the content
// identity used for upload dedup.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Basename strips the extension from an upload filename, the shared key
// used to locate its thumbnails and transcodes.
func Basename(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext)
}
