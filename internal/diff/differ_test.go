package diff

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// TestDifferenceIdempotence covers P5: feeding the same image twice in
// a row yields true then false.
func TestDifferenceIdempotence(t *testing.T) {
	d := New(0.05, Histogram)
	frame := solidImage(100, 100, color.RGBA{A: 255})

	if !d.HasChanged(frame) {
		t.Fatal("first call must always report changed")
	}
	if d.HasChanged(frame) {
		t.Fatal("identical second call must report unchanged")
	}
}

func TestPixelDifferenceDetectsChange(t *testing.T) {
	d := New(0.005, Pixel)
	frame1 := solidImage(100, 100, color.RGBA{A: 255})
	frame2 := solidImage(100, 100, color.RGBA{A: 255})
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			frame2.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	if !d.HasChanged(frame1) {
		t.Fatal("first call must always report changed")
	}
	// 100/10000 = 1% > 0.5% threshold.
	if !d.HasChanged(frame2) {
		t.Fatal("expected change to be detected above threshold")
	}
}

func TestDimensionMismatchIsAlwaysChange(t *testing.T) {
	d := New(0.99, Histogram)
	frame1 := solidImage(100, 100, color.RGBA{A: 255})
	frame2 := solidImage(50, 50, color.RGBA{A: 255})

	d.HasChanged(frame1)
	if !d.HasChanged(frame2) {
		t.Fatal("dimension mismatch must always be treated as a change")
	}
}

// TestDifferHysteresis covers scenario 2 from the spec: identical
// white frames, then a frame with a red patch, then white again, all
// under Pixel mode with threshold 0.005.
func TestDifferHysteresis(t *testing.T) {
	d := New(0.005, Pixel)
	white := solidImage(100, 100, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	redPatch := solidImage(100, 100, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			redPatch.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	var forwarded []bool
	forwarded = append(forwarded, d.HasChanged(white))     // t: first call, always true
	forwarded = append(forwarded, d.HasChanged(white))     // t+3s: identical, false
	forwarded = append(forwarded, d.HasChanged(redPatch))  // t+6s: changed, true
	forwarded = append(forwarded, d.HasChanged(white))     // t+9s: changed back, true

	want := []bool{true, false, true, true}
	for i, w := range want {
		if forwarded[i] != w {
			t.Errorf("call %d: forwarded=%v, want %v", i, forwarded[i], w)
		}
	}
}

func TestSSIMIdenticalImagesAreSimilar(t *testing.T) {
	d := New(0.01, Structural)
	frame := solidImage(64, 64, color.RGBA{R: 100, G: 150, B: 200, A: 255})
	if !d.HasChanged(frame) {
		t.Fatal("first call must always report changed")
	}
	if d.HasChanged(frame) {
		t.Fatal("identical frame under SSIM must report unchanged")
	}
}
