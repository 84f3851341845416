package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	transcriptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callnotes_transcriptions_total",
			Help: "Audio transcriptions by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	transcriptionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callnotes_transcription_duration_seconds",
			Help:    "Transcription latency",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"backend"},
	)

	chunkSummaries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callnotes_chunk_summaries_total",
			Help: "Chunk summarization calls by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	chunkSummaryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callnotes_chunk_summary_duration_seconds",
			Help:    "Chunk summarization latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	notesChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "callnotes_note_chunks",
			Help:    "Number of chunks per assembled call note",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)
)

// Register adds the pipeline collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(transcriptions, transcriptionDuration, chunkSummaries, chunkSummaryDuration, notesChunks)
}

// Outcome converts an error into the outcome label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveTranscription records one transcription attempt.
func ObserveTranscription(backend string, d time.Duration, err error) {
	transcriptions.WithLabelValues(backend, Outcome(err)).Inc()
	transcriptionDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// ObserveChunkSummary records one chunk summarization call.
func ObserveChunkSummary(model string, d time.Duration, err error) {
	chunkSummaries.WithLabelValues(model, Outcome(err)).Inc()
	chunkSummaryDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveNoteChunks records how many chunks a note was assembled from.
func ObserveNoteChunks(n int) {
	notesChunks.Observe(float64(n))
}
