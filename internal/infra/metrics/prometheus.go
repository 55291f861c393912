package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffpp_jobs_processed_total",
		Help: "Total number of extraction jobs processed, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ffpp_stage_duration_seconds",
		Help:    "Duration of dataset preparation stages",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffpp_frames_decoded_total",
		Help: "Total number of frames decoded, by stream",
	}, []string{"stream"})

	ImagesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ffpp_images_written_total",
		Help: "Total number of frame instants written as images",
	})

	InstantsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffpp_instants_skipped_total",
		Help: "Frame instants skipped, by reason",
	}, []string{"reason"})

	FrameCountMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ffpp_frame_count_mismatch_total",
		Help: "Video triples whose streams decoded to different frame counts",
	})

	VideosCompressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffpp_videos_compressed_total",
		Help: "Videos handled by the compressor, by result",
	}, []string{"result", "crf"})

	SequencesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffpp_sequences_total",
		Help: "Source sequences handled by the sequence extractor, by result",
	}, []string{"result"})

	EncodedFrameMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ffpp_encoded_frame_mismatch_total",
		Help: "Encoded sequences whose re-extracted frame count differs from the input",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ffpp_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffpp_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
