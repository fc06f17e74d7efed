package app

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Profiler keeps the last duration of named CPU scopes, plus counters and a
// rolling FPS estimate.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string

	FPS        float64
	frameCount int
	fpsTime    time.Duration
	lastFrame  time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = time.Now()
	if !slices.Contains(p.Order, name) {
		p.Order = append(p.Order, name)
	}
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] = time.Since(start)
		delete(p.StartTimes, name)
	}
}

// Record stores a duration measured elsewhere, e.g. a voxelisation pass.
func (p *Profiler) Record(name string, d time.Duration) {
	if !slices.Contains(p.Order, name) {
		p.Order = append(p.Order, name)
	}
	p.Scopes[name] = d
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Frame marks the end of a frame at now. It returns true once per second,
// when FPS has been refreshed.
func (p *Profiler) Frame(now time.Time) bool {
	defer func() { p.lastFrame = now }()
	if p.lastFrame.IsZero() {
		return false
	}
	p.frameCount++
	p.fpsTime += now.Sub(p.lastFrame)
	if p.fpsTime < time.Second {
		return false
	}
	p.FPS = float64(p.frameCount) / p.fpsTime.Seconds()
	p.frameCount = 0
	p.fpsTime = 0
	return true
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FPS: %.1f\n", p.FPS)
	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "  %-15s: %.2f ms\n", name, ms)
	}

	if len(p.Counts) > 0 {
		sb.WriteString("Stats:\n")
		keys := make([]string, 0, len(p.Counts))
		for k := range p.Counts {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %-15s: %d\n", k, p.Counts[k])
		}
	}
	return sb.String()
}
