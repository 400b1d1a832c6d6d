package charge

import (
	"context"
	"math"
	"sort"
)

// edgeNudge widens the last bin edge so the maximum value always lands in
// the last bin.
const edgeNudge = 1e-15

// coverSlack loosens the bin-width comparison of the cover bound so float
// noise never overstates how many bins a spacing needs.
const coverSlack = 1e-9

// Histogram bins values into at most maxBins occupied bins whose width is a
// whole multiple of the grain 10^-digits and whose centres lie on that grain.
// The width grows one grain at a time until the occupied-bin bound holds.
// Only occupied bins are returned, ascending by centre.  Non-finite values
// are ignored; maxBins below 1 is treated as 1.
func Histogram(values []float64, maxBins, digits int) (centers []float64, counts []int) {
	centers, counts, _ = HistogramContext(context.Background(), values, maxBins, digits)
	return centers, counts
}

// HistogramContext is Histogram with cancellation.  Widths that provably
// cannot meet the bound, or that bin every value exactly like the previous
// width, are skipped without being evaluated.
func HistogramContext(ctx context.Context, values []float64, maxBins, digits int) ([]float64, []int, error) {
	if maxBins < 1 {
		maxBins = 1
	}
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil, nil, nil
	}
	sort.Float64s(finite)
	lo, hi := finite[0], finite[len(finite)-1]

	grain := math.Pow(10, -float64(digits))
	for spacing := firstSpacing(finite, maxBins, grain); ; {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		step := grain * float64(spacing)
		minCenter := roundHalfDown(lo, step)
		maxCenter := roundHalfUp(hi, step)
		n := int(math.Round((maxCenter-minCenter)/step)) + 1

		bins, counts := occupiedBins(finite, minCenter, step, n)
		if len(bins) <= maxBins {
			centers := make([]float64, len(bins))
			for i, b := range bins {
				centers[i] = Round(minCenter+float64(b)*step, digits)
			}
			return centers, counts, nil
		}

		next := spacing + 1
		if ev := nextBinChange(finite, step); !math.IsInf(ev, 1) {
			if s := int(math.Floor(ev / grain)); s > next {
				next = s
			}
		}
		spacing = next
	}
}

// occupiedBins counts sorted values per bin, where bin k spans
// [minCenter-step/2+k*step, minCenter-step/2+(k+1)*step) and the last of the
// n bins is closed.  Only occupied bins are returned, ascending.
func occupiedBins(sorted []float64, minCenter, step float64, n int) (bins, counts []int) {
	edge := func(k int) float64 {
		e := minCenter - step/2 + float64(k)*step
		if k == n {
			e += edgeNudge
		}
		return e
	}
	for _, v := range sorted {
		i := int(math.Floor((v - edge(0)) / step))
		if i < 0 {
			i = 0
		}
		if i > n-1 {
			i = n - 1
		}
		for i > 0 && v < edge(i) {
			i--
		}
		for i < n-1 && v >= edge(i+1) {
			i++
		}
		if k := len(bins); k > 0 && bins[k-1] == i {
			counts[k-1]++
			continue
		}
		bins = append(bins, i)
		counts = append(counts, 1)
	}
	return bins, counts
}

// firstSpacing returns the smallest spacing whose width could hold every
// value in maxBins bins.  Two values share a bin only if they lie within one
// width, so a width whose greedy interval cover needs more than maxBins
// intervals needs more than maxBins bins too.
func firstSpacing(sorted []float64, maxBins int, grain float64) int {
	covers := func(spacing int) int {
		width := grain*float64(spacing)*(1+coverSlack) + edgeNudge
		n, start := 1, sorted[0]
		for _, v := range sorted[1:] {
			if v-start > width {
				n++
				start = v
			}
		}
		return n
	}
	hi := 1
	for covers(hi) > maxBins {
		hi *= 2
	}
	lo := hi/2 + 1
	if hi == 1 {
		lo = 1
	}
	for lo < hi {
		mid := lo + (hi-lo)/2
		if covers(mid) <= maxBins {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// nextBinChange returns the smallest width, at or above step, past which some
// value moves to another bin.  A value v sits in bin round-half-up(v/step) relative
// to the grid, so it moves when v/step+0.5 crosses an integer.
func nextBinChange(sorted []float64, step float64) float64 {
	ev := math.Inf(1)
	for _, v := range sorted {
		f := math.Floor(v/step + 0.5)
		var at float64
		switch {
		case v > 0 && f >= 1:
			at = v / (f - 0.5)
		case v < 0 && f <= -1:
			at = v / (f + 0.5)
		default:
			continue
		}
		if at < ev {
			ev = at
		}
	}
	return ev
}

// roundHalfDown rounds x to the nearest multiple of step, ties toward -inf.
func roundHalfDown(x, step float64) float64 {
	return math.Ceil(x/step-0.5) * step
}

// roundHalfUp rounds x to the nearest multiple of step, ties toward +inf.
func roundHalfUp(x, step float64) float64 {
	return math.Floor(x/step+0.5) * step
}

//Personal.AI order the ending
