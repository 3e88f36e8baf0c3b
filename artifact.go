package html2preview

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-html2preview/internal/fileutil"
	"github.com/nfnt/resize"
)

// PathJoiner replaces "/" in relative paths to build flat output names.
const PathJoiner = "___"

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// OutputName returns the image file name for a page: the relative path with
// "/" replaced by PathJoiner, plus "." and ext. "sub/b.html" -> "sub___b.html.png".
func OutputName(relativePath, ext string) string {
	return strings.ReplaceAll(relativePath, "/", PathJoiner) + "." + ext
}

// ArtifactWriter writes captured images and removes the originating pages.
type ArtifactWriter struct {
	RootDir     string
	OutputDir   string
	Format      string // FormatPNG or FormatJPEG, also the file extension
	JPEGQuality int
	ResizeWidth int // 0 keeps the captured size
}

// Write stores img under OutputDir and returns the written path. The file
// is synced and renamed into place, so an existing image is replaced only
// by a complete one.
func (w *ArtifactWriter) Write(relativePath string, img []byte) (string, error) {
	if len(img) == 0 {
		return "", fmt.Errorf("%w: empty image for %s", ErrWrite, relativePath)
	}

	data, err := w.encode(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if err := os.MkdirAll(w.OutputDir, dirPermissions); err != nil {
		return "", fmt.Errorf("%w: creating output directory: %v", ErrWrite, err)
	}

	path := filepath.Join(w.OutputDir, OutputName(relativePath, w.ext()))
	if err := fileutil.WriteFileAtomic(path, data, filePermissions); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return path, nil
}

// DeleteOriginal removes the page file. Call only after a successful Write.
func (w *ArtifactWriter) DeleteOriginal(relativePath string) error {
	path, err := fileutil.ResolveWithin(w.RootDir, relativePath)
	if err != nil {
		return fmt.Errorf("%w: %w: %v", ErrDeleteOriginal, ErrPathOutsideRoot, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteOriginal, err)
	}
	return nil
}

func (w *ArtifactWriter) ext() string {
	if w.Format == FormatJPEG {
		return "jpg"
	}
	return FormatPNG
}

// encode downscales the captured image when ResizeWidth is smaller than its
// width. Otherwise the browser's bytes are kept as-is.
func (w *ArtifactWriter) encode(data []byte) ([]byte, error) {
	if w.ResizeWidth <= 0 {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding captured image: %w", err)
	}
	if img.Bounds().Dx() <= w.ResizeWidth {
		return data, nil
	}

	// Height 0 preserves the aspect ratio.
	resized := resize.Resize(uint(w.ResizeWidth), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if w.Format == FormatJPEG {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: w.JPEGQuality})
	} else {
		err = png.Encode(&buf, resized)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding resized image: %w", err)
	}
	return buf.Bytes(), nil
}
