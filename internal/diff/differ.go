// Package diff decides whether a newly captured frame differs enough
// from the previous one to be worth forwarding down the pipeline.
package diff

import (
	"image"
	"image/color"
)

// Method selects the comparison algorithm.
type Method int

const (
	// Histogram compares RGB color distributions via chi-squared
	// distance. Good balance of accuracy and cost; the default.
	Histogram Method = iota
	// Pixel counts the fraction of pixels that differ in any channel.
	// Cheapest, most deterministic for tests.
	Pixel
	// Structural reports 1-SSIM over 8x8 luminance windows.
	Structural
)

// Differ holds at most one reference frame and decides, on each call,
// whether the incoming frame has changed enough to replace it. Not
// safe for concurrent use — owned by a single capture goroutine.
type Differ struct {
	threshold float64
	method    Method
	last      image.Image
}

// New creates a Differ with the given threshold and method.
func New(threshold float64, method Method) *Differ {
	return &Differ{threshold: threshold, method: method}
}

// HasChanged reports whether current differs enough from the held
// reference frame. The first call always returns true. On any true
// result the reference is updated to current.
func (d *Differ) HasChanged(current image.Image) bool {
	changed := d.last == nil || d.difference(d.last, current) > d.threshold
	if changed {
		d.last = current
	}
	return changed
}

// Reset clears the held reference frame.
func (d *Differ) Reset() { d.last = nil }

// Threshold returns the current difference threshold.
func (d *Differ) Threshold() float64 { return d.threshold }

// SetThreshold updates the difference threshold.
func (d *Differ) SetThreshold(t float64) { d.threshold = t }

// Method returns the current comparison method.
func (d *Differ) Method() Method { return d.method }

// SetMethod updates the comparison method.
func (d *Differ) SetMethod(m Method) { d.method = m }

func (d *Differ) difference(a, b image.Image) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 1.0
	}
	switch d.method {
	case Pixel:
		return pixelDifference(a, b)
	case Structural:
		return 1.0 - ssim(a, b)
	default:
		return histogramDifference(a, b)
	}
}

func pixelDifference(a, b image.Image) float64 {
	ab := a.Bounds()
	total := float64(ab.Dx() * ab.Dy())
	if total == 0 {
		return 0
	}
	diffPixels := 0
	bOrigin := b.Bounds().Min
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			pa := a.At(ab.Min.X+x, ab.Min.Y+y)
			pb := b.At(bOrigin.X+x, bOrigin.Y+y)
			ra, ga, ba_, aa := pa.RGBA()
			rb, gb, bb_, ab2 := pb.RGBA()
			if ra != rb || ga != gb || ba_ != bb_ || aa != ab2 {
				diffPixels++
			}
		}
	}
	return float64(diffPixels) / total
}

const histogramBins = 16

func histogramDifference(a, b image.Image) float64 {
	hist1 := buildHistogram(a)
	hist2 := buildHistogram(b)

	chiSquared := 0.0
	for i := range hist1 {
		h1 := float64(hist1[i])
		h2 := float64(hist2[i])
		if h1+h2 > 0 {
			chiSquared += (h1 - h2) * (h1 - h2) / (h1 + h2)
		}
	}

	ab := a.Bounds()
	totalPixels := float64(ab.Dx() * ab.Dy())
	if totalPixels == 0 {
		return 0
	}
	v := chiSquared / totalPixels
	if v > 1.0 {
		v = 1.0
	}
	return v
}

func buildHistogram(img image.Image) [histogramBins * 3]uint32 {
	var hist [histogramBins * 3]uint32
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// RGBA() returns 16-bit-scaled channels; scale to 8-bit first.
			r8, g8, b8 := r>>8, g>>8, bl>>8
			rb := int(r8) * histogramBins / 256
			gb := int(g8) * histogramBins / 256
			bb := int(b8) * histogramBins / 256
			hist[rb]++
			hist[histogramBins+gb]++
			hist[histogramBins*2+bb]++
		}
	}
	return hist
}

const (
	ssimWindow = 8
	ssimK1     = 0.01
	ssimK2     = 0.03
	ssimL      = 255.0
)

func ssim(a, b image.Image) float64 {
	bounds := a.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < ssimWindow || height < ssimWindow {
		return 1.0 - pixelDifference(a, b)
	}

	c1 := (ssimK1 * ssimL) * (ssimK1 * ssimL)
	c2 := (ssimK2 * ssimL) * (ssimK2 * ssimL)

	sum := 0.0
	count := 0
	for y := 0; y+ssimWindow <= height; y += ssimWindow {
		for x := 0; x+ssimWindow <= width; x += ssimWindow {
			sum += ssimWindowScore(a, b, bounds.Min.X+x, bounds.Min.Y+y, c1, c2)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func ssimWindowScore(a, b image.Image, x0, y0 int, c1, c2 float64) float64 {
	var sum1, sum2, sum1sq, sum2sq, sum12 float64
	n := float64(ssimWindow * ssimWindow)

	for dy := 0; dy < ssimWindow; dy++ {
		for dx := 0; dx < ssimWindow; dx++ {
			g1 := luminance(a.At(x0+dx, y0+dy))
			g2 := luminance(b.At(x0+dx, y0+dy))
			sum1 += g1
			sum2 += g2
			sum1sq += g1 * g1
			sum2sq += g2 * g2
			sum12 += g1 * g2
		}
	}

	mean1 := sum1 / n
	mean2 := sum2 / n
	var1 := sum1sq/n - mean1*mean1
	var2 := sum2sq/n - mean2*mean2
	covar := sum12/n - mean1*mean2

	numerator := (2*mean1*mean2 + c1) * (2*covar + c2)
	denominator := (mean1*mean1 + mean2*mean2 + c1) * (var1 + var2 + c2)
	if denominator == 0 {
		return 1.0
	}
	return numerator / denominator
}

func luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	r8, g8, b8 := float64(r>>8), float64(g>>8), float64(b>>8)
	return 0.299*r8 + 0.587*g8 + 0.114*b8
}
