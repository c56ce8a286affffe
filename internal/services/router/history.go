package router

import (
	"math"

	"github.com/Egham-7/cascade-engine/internal/models"
)

// WindowSize bounds the rolling observation window per (category, model)
// pair. Memory per pair is fixed at construction; old observations fall out
// as new ones arrive.
const WindowSize = 100

// perfRing is a bounded ring buffer of performance samples with running sums
// so rolling statistics are O(1) reads, never a rescan of the window.
type perfRing struct {
	samples [WindowSize]models.PerformanceSample
	size    int
	next    int

	sumQuality   float64
	sumQualitySq float64
	sumLatency   float64
	sumCost      float64
}

func (r *perfRing) append(s models.PerformanceSample) {
	if r.size == WindowSize {
		old := r.samples[r.next]
		r.sumQuality -= old.Quality
		r.sumQualitySq -= old.Quality * old.Quality
		r.sumLatency -= float64(old.LatencyMs)
		r.sumCost -= old.Cost
	} else {
		r.size++
	}

	r.samples[r.next] = s
	r.next = (r.next + 1) % WindowSize

	r.sumQuality += s.Quality
	r.sumQualitySq += s.Quality * s.Quality
	r.sumLatency += float64(s.LatencyMs)
	r.sumCost += s.Cost
}

func (r *perfRing) avgQuality() float64 {
	if r.size == 0 {
		return 0
	}
	return r.sumQuality / float64(r.size)
}

func (r *perfRing) avgLatencyMs() float64 {
	if r.size == 0 {
		return 0
	}
	return r.sumLatency / float64(r.size)
}

func (r *perfRing) avgCost() float64 {
	if r.size == 0 {
		return 0
	}
	return r.sumCost / float64(r.size)
}

// qualityStdDev is the population standard deviation of quality over the
// window, clamped at zero against floating point drift of the running sums.
func (r *perfRing) qualityStdDev() float64 {
	if r.size == 0 {
		return 0
	}
	n := float64(r.size)
	mean := r.sumQuality / n
	variance := r.sumQualitySq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
