package engine

import "math"

// DefaultMinMaxRatio is the minmax_ratio: phase one keeps roughly this
// many candidate points per output point before phase two's LTTB
// refinement narrows them down to n_out.
const DefaultMinMaxRatio = 4.0

// minMaxLTTB implements two-phase downsampling:
//
//  1. Min-max preselection splits the series into buckets and keeps each
//     bucket's minimum- and maximum-y index, NaN never counting as an
//     extremum. A bucket whose points are all NaN still contributes its
//     first index (with a NaN y), preserving gap visibility.
//  2. LTTB (Largest-Triangle-Three-Buckets) refines the preselected
//     candidates down to exactly n_out points, maximizing triangle area
//     against the running anchor and the next bucket's average; NaN
//     points contribute zero area.
//
// The first and last input points are always preserved, output x values
// are strictly increasing, and the result is deterministic: ties in
// triangle area resolve to the earliest candidate.
func minMaxLTTB(xs, ys []float64, nOut int, minMaxRatio float64) ([]float64, []float64) {
	n := len(xs)
	if n == 0 {
		return nil, nil
	}
	if nOut <= 2 || n <= nOut {
		if n <= nOut {
			return dedupeStrictlyIncreasing(xs, ys)
		}
		return dedupeStrictlyIncreasing([]float64{xs[0], xs[n-1]}, []float64{ys[0], ys[n-1]})
	}
	if minMaxRatio <= 0 {
		minMaxRatio = DefaultMinMaxRatio
	}

	numBuckets := int(float64(nOut) * minMaxRatio / 2)
	if numBuckets < 1 {
		numBuckets = 1
	}
	candidates := minMaxPreselect(ys, numBuckets)
	if candidates[0] != 0 {
		candidates = append([]int{0}, candidates...)
	}
	if last := len(candidates) - 1; candidates[last] != n-1 {
		candidates = append(candidates, n-1)
	}

	selected := lttbSelect(xs, ys, candidates, nOut)
	outXs := make([]float64, len(selected))
	outYs := make([]float64, len(selected))
	for i, idx := range selected {
		outXs[i] = xs[idx]
		outYs[i] = ys[idx]
	}
	return dedupeStrictlyIncreasing(outXs, outYs)
}

// minMaxPreselect splits [0,n) into numBuckets contiguous ranges and
// returns, per bucket, the indices of its minimum and its maximum in
// ascending index order (or just one index if they coincide, or the
// bucket's first index if every point in it is NaN).
func minMaxPreselect(ys []float64, numBuckets int) []int {
	n := len(ys)
	indices := make([]int, 0, numBuckets*2)
	bucketSize := float64(n) / float64(numBuckets)

	for b := 0; b < numBuckets; b++ {
		start := int(float64(b) * bucketSize)
		end := int(float64(b+1) * bucketSize)
		if b == numBuckets-1 {
			end = n
		}
		if start >= end {
			continue
		}

		haveExtremum := false
		minIdx, maxIdx := start, start
		var minVal, maxVal float64
		for i := start; i < end; i++ {
			y := ys[i]
			if isNaN64(y) {
				continue
			}
			if !haveExtremum {
				minVal, maxVal = y, y
				minIdx, maxIdx = i, i
				haveExtremum = true
				continue
			}
			if y < minVal {
				minVal, minIdx = y, i
			}
			if y > maxVal {
				maxVal, maxIdx = y, i
			}
		}

		if !haveExtremum {
			indices = append(indices, start)
			continue
		}
		switch {
		case minIdx == maxIdx:
			indices = append(indices, minIdx)
		case minIdx < maxIdx:
			indices = append(indices, minIdx, maxIdx)
		default:
			indices = append(indices, maxIdx, minIdx)
		}
	}
	return indices
}

// lttbSelect runs Largest-Triangle-Three-Buckets over the candidate
// indices (already sorted ascending, first/last guaranteed present),
// returning threshold indices into the original xs/ys.
func lttbSelect(xs, ys []float64, candidates []int, threshold int) []int {
	m := len(candidates)
	if threshold >= m {
		return candidates
	}
	if threshold <= 2 {
		return []int{candidates[0], candidates[m-1]}
	}

	sampled := make([]int, 0, threshold)
	sampled = append(sampled, candidates[0])

	bucketSize := float64(m-2) / float64(threshold-2)
	anchor := candidates[0]

	for i := 0; i < threshold-2; i++ {
		avgStart := int(float64(i+1)*bucketSize) + 1
		avgEnd := int(float64(i+2)*bucketSize) + 1
		if avgEnd > m {
			avgEnd = m
		}
		if avgStart >= avgEnd {
			avgStart, avgEnd = m-1, m
		}
		avgX, avgY, haveAvg := averagePoint(xs, ys, candidates[avgStart:avgEnd])

		rangeFrom := int(float64(i)*bucketSize) + 1
		rangeTo := int(float64(i+1)*bucketSize) + 1
		if rangeTo > m {
			rangeTo = m
		}

		bestArea := -1.0
		bestIdx := candidates[rangeFrom]
		for j := rangeFrom; j < rangeTo; j++ {
			cand := candidates[j]
			area := triangleArea(xs[anchor], ys[anchor], xs[cand], ys[cand], avgX, avgY, haveAvg)
			if area > bestArea {
				bestArea = area
				bestIdx = cand
			}
		}
		sampled = append(sampled, bestIdx)
		anchor = bestIdx
	}

	sampled = append(sampled, candidates[m-1])
	return sampled
}

// averagePoint computes the centroid of a candidate-index bucket,
// skipping NaN y values. haveAvg is false only when every point in the
// bucket is NaN.
func averagePoint(xs, ys []float64, idxs []int) (avgX, avgY float64, haveAvg bool) {
	var sumX, sumY float64
	var count int
	for _, idx := range idxs {
		sumX += xs[idx]
		if isNaN64(ys[idx]) {
			continue
		}
		sumY += ys[idx]
		count++
	}
	n := len(idxs)
	if n == 0 {
		return 0, 0, false
	}
	avgX = sumX / float64(n)
	if count == 0 {
		return avgX, 0, false
	}
	return avgX, sumY / float64(count), true
}

// triangleArea returns the (unsigned) triangle area formed by
// (ax,ay), (bx,by), (cx,cy). NaN endpoints (missing y) or a NaN/absent
// average vertex contribute zero area.
func triangleArea(ax, ay, bx, by, cx, cy float64, haveC bool) float64 {
	if isNaN64(ay) || isNaN64(by) || !haveC || isNaN64(cy) {
		return 0
	}
	return math.Abs((ax-cx)*(by-ay)-(ax-bx)*(cy-ay)) / 2
}

// dedupeStrictlyIncreasing drops later points that share an x value with
// an already-kept point, except the final point is always kept so the
// series still ends where the input did.
func dedupeStrictlyIncreasing(xs, ys []float64) ([]float64, []float64) {
	if len(xs) <= 1 {
		return xs, ys
	}
	outXs := make([]float64, 0, len(xs))
	outYs := make([]float64, 0, len(ys))
	outXs = append(outXs, xs[0])
	outYs = append(outYs, ys[0])
	for i := 1; i < len(xs); i++ {
		last := len(outXs) - 1
		if xs[i] == outXs[last] && i != len(xs)-1 {
			continue
		}
		if i == len(xs)-1 && xs[i] == outXs[last] {
			outXs[last] = xs[i]
			outYs[last] = ys[i]
			continue
		}
		outXs = append(outXs, xs[i])
		outYs = append(outYs, ys[i])
	}
	return outXs, outYs
}
