package stanza

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProcessImageDownscales(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(1600, 1200)); err != nil {
		t.Fatal(err)
	}

	info, data, err := ProcessImage(&buf, "Big Screenshot.png")
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if info.Width != 800 || info.Height != 600 {
		t.Errorf("dimensions = %dx%d, want 800x600", info.Width, info.Height)
	}
	if info.Filename != "big-screenshot.jpg" {
		t.Errorf("Filename = %q", info.Filename)
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %q, want jpeg", format)
	}
	if b := decoded.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Errorf("output bounds = %v", b)
	}
}

func TestProcessImageKeepsSmallSize(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(400, 300)); err != nil {
		t.Fatal(err)
	}
	info, _, err := ProcessImage(&buf, "small.png")
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if info.Width != 400 || info.Height != 300 {
		t.Errorf("dimensions = %dx%d, want 400x300 unchanged", info.Width, info.Height)
	}
}

func TestConvertDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "one.png"), 100, 100)
	writePNG(t, filepath.Join(dir, "Two Shots.png"), 1000, 500)
	writeJPEG(t, filepath.Join(dir, "photo.jpeg"), 100, 100)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("also not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A stray png in a subdirectory is swept even though only top-level
	// entries get conversion attempts.
	sub := filepath.Join(dir, "old")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(sub, "stray.png"), 10, 10)

	report, err := ConvertDir(dir)
	if err != nil {
		t.Fatalf("ConvertDir failed: %v", err)
	}

	// One attempt per regular top-level file, images and non-images alike.
	if report.Attempted != 5 {
		t.Errorf("Attempted = %d, want 5", report.Attempted)
	}
	if report.Converted != 3 {
		t.Errorf("Converted = %d, want 3", report.Converted)
	}
	if report.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", report.Skipped)
	}
	if report.Removed != 3 {
		t.Errorf("Removed = %d, want 3", report.Removed)
	}
	if len(report.Errors) != 0 {
		t.Errorf("Errors = %v", report.Errors)
	}

	// No .png survives anywhere under the directory.
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".png") {
			t.Errorf("leftover png: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Converted JPEGs sit next to the originals with slugified names.
	for _, name := range []string{"one.jpg", "two-shots.jpg", "photo.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing converted file %s: %v", name, err)
		}
	}
	// Non-image files are untouched.
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("notes.txt should be untouched: %v", err)
	}

	// The width cap applies during conversion.
	f, err := os.Open(filepath.Join(dir, "two-shots.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if w := img.Bounds().Dx(); w != 800 {
		t.Errorf("converted width = %d, want 800", w)
	}
}

func TestConvertDirSkipsUndecodableFile(t *testing.T) {
	dir := t.TempDir()
	// A .png extension on non-image bytes: the decode attempt must count
	// as a skip, not an error, and the sweep still removes the file.
	if err := os.WriteFile(filepath.Join(dir, "junk.png"), []byte("not an image at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := ConvertDir(dir)
	if err != nil {
		t.Fatalf("ConvertDir failed: %v", err)
	}
	if report.Attempted != 1 || report.Skipped != 1 || report.Converted != 0 {
		t.Errorf("report = %+v, want 1 attempt skipped", report)
	}
	if report.Removed != 1 {
		t.Errorf("Removed = %d, want 1", report.Removed)
	}
	if len(report.Errors) != 0 {
		t.Errorf("Errors = %v, want none", report.Errors)
	}
}

func TestConvertDirIdempotent(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "shot.png"), 100, 100)

	if _, err := ConvertDir(dir); err != nil {
		t.Fatalf("first ConvertDir failed: %v", err)
	}
	report, err := ConvertDir(dir)
	if err != nil {
		t.Fatalf("second ConvertDir failed: %v", err)
	}
	if report.Removed != 0 {
		t.Errorf("Removed = %d on second run, want 0", report.Removed)
	}
	if report.Converted != 1 {
		t.Errorf("Converted = %d, want 1 (re-encode in place)", report.Converted)
	}
	if _, err := os.Stat(filepath.Join(dir, "shot.jpg")); err != nil {
		t.Errorf("shot.jpg missing after second run: %v", err)
	}
}
