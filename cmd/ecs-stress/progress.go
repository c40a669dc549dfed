package main

import (
	"time"

	"github.com/rs/zerolog"
)

// frameHistory keeps a ring of recent frame times and logs a progress line
// at most once per interval.
type frameHistory struct {
	frames   []time.Duration
	index    int
	filled   int
	interval time.Duration
	lastLog  time.Time
	logger   zerolog.Logger
}

func newFrameHistory(historyFrames int, interval time.Duration, logger zerolog.Logger) *frameHistory {
	return &frameHistory{
		frames:   make([]time.Duration, historyFrames),
		interval: interval,
		logger:   logger,
	}
}

func (h *frameHistory) Record(frame time.Duration) {
	h.frames[h.index] = frame
	h.index = (h.index + 1) % len(h.frames)
	if h.filled < len(h.frames) {
		h.filled++
	}
}

func (h *frameHistory) Average() time.Duration {
	if h.filled == 0 {
		return 0
	}
	var total time.Duration
	for _, f := range h.frames[:h.filled] {
		total += f
	}
	return total / time.Duration(h.filled)
}

func (h *frameHistory) MaybeLog(now time.Time, population int) {
	if now.Sub(h.lastLog) < h.interval {
		return
	}
	h.lastLog = now

	avg := h.Average()
	var fps float64
	if avg > 0 {
		fps = float64(time.Second) / float64(avg)
	}
	h.logger.Info().
		Dur("avg_frame", avg).
		Float64("fps", fps).
		Int("population", population).
		Msg("progress")
}
