package main

import (
	"bufio"
	"context"
	"fmt"
	"image/color"
	"io"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"corridor-pilot/utils"
)

var (
	singleSeries  = []string{"value"}
	controlSeries = []string{"error", "proportional", "derivative", "distance"}
)

// Collector accumulates timestamped samples of a fixed set of series. Points
// are kept for the whole session.
type Collector struct {
	names []string

	mu      sync.Mutex
	start   time.Time
	t       []float64
	values  [][]float64
	skipped int
}

func NewCollector(names []string) *Collector {
	return &Collector{names: names, values: make([][]float64, len(names))}
}

// AddLine parses one serial line and stores it when it carries enough numbers.
func (c *Collector) AddLine(at time.Time, line string) bool {
	nums := utils.ParseNumbers(line, len(c.names))
	c.mu.Lock()
	defer c.mu.Unlock()
	if nums == nil {
		c.skipped++
		return false
	}
	if len(c.t) == 0 {
		c.start = at
	}
	c.t = append(c.t, at.Sub(c.start).Seconds())
	for i, v := range nums {
		c.values[i] = append(c.values[i], v)
	}
	return true
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.t)
}

func (c *Collector) Skipped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}

// SeriesStats is the mean and sample standard deviation of one series.
type SeriesStats struct {
	Name string
	Mean float64
	Std  float64
	Last float64
}

func (c *Collector) Stats() []SeriesStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SeriesStats, len(c.names))
	for i, name := range c.names {
		out[i].Name = name
		vals := c.values[i]
		if len(vals) == 0 {
			continue
		}
		out[i].Last = vals[len(vals)-1]
		if len(vals) == 1 {
			out[i].Mean = vals[0]
			continue
		}
		out[i].Mean, out[i].Std = stat.MeanStdDev(vals, nil)
	}
	return out
}

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

// SavePNG renders every series against seconds since the first sample. It
// writes nothing until at least one sample exists.
func (c *Collector) SavePNG(path, title string) error {
	stats := c.Stats()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.t) == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "seconds"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	for i, name := range c.names {
		pts := make(plotter.XYs, len(c.t))
		for j := range c.t {
			pts[j] = plotter.XY{X: c.t[j], Y: c.values[i][j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("series %s: %w", name, err)
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1)
		p.Add(line)
		s := stats[i]
		p.Legend.Add(fmt.Sprintf("%s  last %.3g  mean %.3g ± %.3g", name, s.Last, s.Mean, s.Std), line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// ReadLines feeds every line from r into c until ctx is canceled, r reaches
// EOF, or r fails.
func ReadLines(ctx context.Context, r io.Reader, c *Collector, now func() time.Time) error {
	scan := bufio.NewScanner(retryReader{ctx: ctx, r: r})
	for scan.Scan() {
		c.AddLine(now(), scan.Text())
		if ctx.Err() != nil {
			return nil
		}
	}
	return scan.Err()
}

// retryReader repeats the zero-byte reads a serial port returns on read
// timeout, so a line split across a timeout reaches the scanner intact. It
// reports EOF once ctx is done.
type retryReader struct {
	ctx context.Context
	r   io.Reader
}

func (rr retryReader) Read(p []byte) (int, error) {
	for {
		n, err := rr.r.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		if rr.ctx.Err() != nil {
			return 0, io.EOF
		}
	}
}
