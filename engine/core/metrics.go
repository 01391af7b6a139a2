package core

import "sync"

const AVG_COUNT uint8 = 30

type MetricsState struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64

	// Submission counters for the last rendered frame.
	DrawCommands uint32
	Instances    uint64
	// Running totals since MetricsInitialize.
	TotalSubmissions uint64
	TotalInstances   uint64
}

var onceMetrics sync.Once
var metricsMutex sync.Mutex
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

func metrics() *MetricsState {
	MetricsInitialize()
	return metricsState
}

func MetricsUpdate(frame_elapsed_time float64) {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	state := metrics()

	// Calculate frame ms average
	frame_ms := (frame_elapsed_time * 1000.0)
	state.MStimes[state.FrameAVGCounter] = frame_ms
	if state.FrameAVGCounter == AVG_COUNT-1 {
		state.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			state.MSavg += state.MStimes[i]
		}
		state.MSavg /= float64(AVG_COUNT)
	}
	state.FrameAVGCounter++
	state.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	state.AccumulatedFrameMS += frame_ms
	if state.AccumulatedFrameMS > 1000 {
		state.FPS = float64(state.Frames)
		state.AccumulatedFrameMS -= 1000
		state.Frames = 0
	}

	// Count all Frames.
	state.Frames++
}

// MetricsSubmission records one multi-draw submission.
func MetricsSubmission(drawCommands uint32, instances uint64) {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	state := metrics()

	state.DrawCommands = drawCommands
	state.Instances = instances
	state.TotalSubmissions++
	state.TotalInstances += instances
}

func MetricsFPS() float64 {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	state := metrics()
	return state.FPS
}

func MetricsFrameTime() float64 {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	state := metrics()
	return state.MSavg
}

func MetricsFrame() (float64, float64) {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	state := metrics()
	return state.FPS, state.MSavg
}

// MetricsSnapshot returns a copy of the current metrics.
func MetricsSnapshot() MetricsState {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	state := metrics()
	return *state
}
