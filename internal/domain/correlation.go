package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const day = 24 * time.Hour

// Observation is one timestamped primary-metric value, e.g. a PM2.5 reading.
type Observation struct {
	At    time.Time
	Value float64
}

// CorrelationWindow selects the inclusive UTC day range [From, To] and the lag
// in days applied to the event series.
type CorrelationWindow struct {
	From time.Time
	To   time.Time
	Lag  int
}

// NewCorrelationWindow truncates from and to to UTC days and validates the range and lag.
func NewCorrelationWindow(from, to time.Time, lag, maxLag int) (CorrelationWindow, error) {
	w := CorrelationWindow{From: utcDay(from), To: utcDay(to), Lag: lag}
	if w.To.Before(w.From) {
		return CorrelationWindow{}, errors.New("to must not be before from")
	}
	if lag < 0 || lag > maxLag {
		return CorrelationWindow{}, fmt.Errorf("lag must be between 0 and %d", maxLag)
	}
	return w, nil
}

// PrimaryRange returns the half-open fetch range for the primary series.
func (w CorrelationWindow) PrimaryRange() (start, end time.Time) {
	return w.From, w.To.Add(day)
}

// EventRange returns the half-open fetch range for the event series, widened
// by lookbackDays before From so lagged pairs near the start are populated.
func (w CorrelationWindow) EventRange(lookbackDays int) (start, end time.Time) {
	return w.From.AddDate(0, 0, -lookbackDays), w.To.Add(day)
}

// Correlate buckets the primary series by UTC day (mean) and the events by UTC
// day (count), then for each day d in the window that has a primary bucket
// pairs the mean at d with the event count at d minus the lag. Days without a
// primary observation are skipped.
func Correlate(primary []Observation, events []time.Time, w CorrelationWindow) []CorrelationPoint {
	type agg struct {
		sum   float64
		count int
	}

	means := make(map[time.Time]*agg)
	for _, o := range primary {
		k := utcDay(o.At)
		a, ok := means[k]
		if !ok {
			a = &agg{}
			means[k] = a
		}
		a.sum += o.Value
		a.count++
	}

	counts := make(map[time.Time]int)
	for _, e := range events {
		counts[utcDay(e)]++
	}

	var points []CorrelationPoint
	for d := w.From; !d.After(w.To); d = d.AddDate(0, 0, 1) {
		a, ok := means[d]
		if !ok {
			continue
		}
		points = append(points, CorrelationPoint{
			Date:          d,
			PrimaryMetric: a.sum / float64(a.count),
			EventCount:    counts[d.AddDate(0, 0, -w.Lag)],
		})
	}
	return points
}

// Pearson returns the Pearson coefficient between primary metric and event
// count over points. It reports false with fewer than two points or when
// either series is constant.
func Pearson(points []CorrelationPoint) (float64, bool) {
	n := len(points)
	if n < 2 {
		return 0, false
	}

	var meanX, meanY float64
	for _, p := range points {
		meanX += p.PrimaryMetric
		meanY += float64(p.EventCount)
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var sumXY, sumX2, sumY2 float64
	for _, p := range points {
		dx := p.PrimaryMetric - meanX
		dy := float64(p.EventCount) - meanY
		sumXY += dx * dy
		sumX2 += dx * dx
		sumY2 += dy * dy
	}
	if sumX2 == 0 || sumY2 == 0 {
		return 0, false
	}
	return sumXY / math.Sqrt(sumX2*sumY2), true
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
