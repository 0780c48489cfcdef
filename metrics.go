package chunker

import "github.com/arya-analytics/chunker/alamos"

type metrics struct {
	// bounds is the time taken to compute the snapshot key range.
	bounds alamos.Duration
	// fetch is the time taken to retrieve each chunk.
	fetch alamos.Duration
	// callback is the time spent in the callback for each chunk.
	callback alamos.Duration
	// chunkSize is the number of records in each chunk.
	chunkSize alamos.Metric[int]
}

const metricsKey = "chunker"

func newMetrics(exp alamos.Experiment) metrics {
	sub := alamos.Sub(exp, metricsKey)
	return metrics{
		bounds:    alamos.NewGaugeDuration(sub, alamos.Debug, "boundsDur"),
		fetch:     alamos.NewSeriesDuration(sub, alamos.Debug, "fetchDur"),
		callback:  alamos.NewSeriesDuration(sub, alamos.Debug, "callbackDur"),
		chunkSize: alamos.NewSeries[int](sub, alamos.Production, "chunkSize"),
	}
}
