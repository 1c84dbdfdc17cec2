package app

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"gaze-markers/internal/detector"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
)

// Summary aggregates a run.
type Summary struct {
	Frames      int64
	Failures    int64
	Surfaces    int64
	Markers     map[int]int // frames each marker ID was seen in
	MeanLatency time.Duration
	P95Latency  time.Duration
	MaxLatency  time.Duration
}

type runStats struct {
	mu        sync.Mutex
	frames    int64
	failures  int64
	surfaces  int64
	markers   map[int]int
	latencies stats.Float64Data // milliseconds
}

func newRunStats() *runStats {
	return &runStats{markers: make(map[int]int)}
}

func (s *runStats) record(latency time.Duration, fs FrameSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if fs.Failed {
		s.failures++
	}
	s.latencies = append(s.latencies, float64(latency)/float64(time.Millisecond))
}

func (s *runStats) recordMarkers(res *detector.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range res.Markers {
		s.markers[m.ID]++
	}
	if res.Surface.Detected() {
		s.surfaces++
	}
}

func (s *runStats) summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Summary{
		Frames:   s.frames,
		Failures: s.failures,
		Surfaces: s.surfaces,
		Markers:  make(map[int]int, len(s.markers)),
	}
	for id, n := range s.markers {
		out.Markers[id] = n
	}
	if len(s.latencies) == 0 {
		return out
	}

	mean, _ := stats.Mean(s.latencies)
	p95, _ := stats.Percentile(s.latencies, 95)
	maxMs, _ := stats.Max(s.latencies)
	out.MeanLatency = ms(mean)
	out.P95Latency = ms(p95)
	out.MaxLatency = ms(maxMs)
	return out
}

func ms(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

// Render writes the summary as two tables: run totals and marker sightings.
func (s Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run summary")
	t.AppendHeader(table.Row{"Frames", "Failed", "Surfaces", "Mean", "P95", "Max"})
	t.AppendRow(table.Row{s.Frames, s.Failures, s.Surfaces,
		s.MeanLatency.Round(time.Microsecond), s.P95Latency.Round(time.Microsecond), s.MaxLatency.Round(time.Microsecond)})
	t.Render()

	if len(s.Markers) == 0 {
		fmt.Fprintln(w, "No markers seen.")
		return
	}

	ids := make([]int, 0, len(s.Markers))
	for id := range s.Markers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	mt := table.NewWriter()
	mt.SetOutputMirror(w)
	mt.AppendHeader(table.Row{"Marker", "Frames", "Seen"})
	for _, id := range ids {
		pct := 0.0
		if s.Frames > 0 {
			pct = 100 * float64(s.Markers[id]) / float64(s.Frames)
		}
		mt.AppendRow(table.Row{id, s.Markers[id], fmt.Sprintf("%.1f%%", pct)})
	}
	mt.Render()
}
