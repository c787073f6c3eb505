package stanza

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
)

// ImageInfo describes a converted image.
type ImageInfo struct {
	Filename     string
	OriginalName string
	Width        int
	Height       int
	Size         int
}

// ProcessImage decodes an image from src, downscales it to maxImageWidth
// if wider, and encodes it as JPEG. Returns metadata and the encoded bytes.
func ProcessImage(src io.Reader, originalName string) (ImageInfo, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return ImageInfo{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxImageWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return ImageInfo{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	ext := filepath.Ext(originalName)
	filename := Slugify(strings.TrimSuffix(originalName, ext)) + ".jpg"

	return ImageInfo{
		Filename:     filename,
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
	}, buf.Bytes(), nil
}

// ConvertReport summarizes a ConvertDir sweep.
type ConvertReport struct {
	Attempted int // conversion attempts, one per directory entry
	Converted int
	Skipped   int // entries that did not decode as images
	Removed   int // .png files deleted afterwards
	Errors    []error
}

// ConvertDir is the image maintenance sweep: every regular file in dir
// gets one conversion attempt (decode, downscale, re-encode as JPEG next
// to the original); afterwards all .png files under dir are removed
// recursively, the originals included. Failures are collected in the
// report instead of aborting the sweep.
func ConvertDir(dir string) (ConvertReport, error) {
	var report ConvertReport

	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		report.Attempted++
		src := filepath.Join(dir, entry.Name())
		if err := convertFile(src); err != nil {
			// Non-image entries are expected in a mixed directory; the
			// decoder signals them with image.ErrFormat. Anything else
			// is worth reporting.
			if errors.Is(err, image.ErrFormat) {
				report.Skipped++
			} else {
				report.Errors = append(report.Errors, fmt.Errorf("%s: %w", entry.Name(), err))
			}
			continue
		}
		report.Converted++
	}

	removed, sweepErrs := removePNGs(dir)
	report.Removed = removed
	report.Errors = append(report.Errors, sweepErrs...)

	return report, nil
}

func convertFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, data, err := ProcessImage(f, filepath.Base(path))
	if err != nil {
		return err
	}
	target := filepath.Join(filepath.Dir(path), info.Filename)
	if target == path {
		// Already a JPEG with a clean name; re-encoding in place still
		// applies the width cap.
		return os.WriteFile(path, data, 0o644)
	}
	return os.WriteFile(target, data, 0o644)
}

// removePNGs deletes every .png file under dir recursively.
func removePNGs(dir string) (int, []error) {
	removed := 0
	var errs []error
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".png") {
			return nil
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return removed, errs
}
