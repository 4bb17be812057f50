package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"corridor-pilot/utils"
)

func main() {
	var (
		port     = flag.String("port", "/dev/ttyACM0", "Serial port")
		baud     = flag.Int("baud", 9600, "Baud rate")
		out      = flag.String("out", "graph.png", "Output PNG file path")
		update   = flag.Duration("update", 500*time.Millisecond, "Interval between PNG updates")
		title    = flag.String("title", "", "Plot title")
		timeout  = flag.Duration("timeout", time.Second, "Serial read timeout")
		series   = flag.Int("series", 4, "Numbers per line: 1 (first number) or 4 (error P D distance)")
		logLevel = flag.String("log", "info", "trace|debug|info|warn|error|critical")
	)
	flag.Parse()

	log := utils.NewLogger(os.Stdout, utils.ParseLevel(*logLevel))

	var names []string
	switch *series {
	case 1:
		names = singleSeries
	case 4:
		names = controlSeries
	default:
		log.Critical("-series must be 1 or 4, got %d", *series)
		os.Exit(2)
	}

	p, err := utils.OpenSerialReader(*port, *baud, *timeout)
	if err != nil {
		log.Critical("%v", err)
		os.Exit(2)
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := NewCollector(names)
	readErr := make(chan error, 1)
	go func() { readErr <- ReadLines(ctx, p, c, time.Now) }()

	log.Info("Reading from %s at %d baud. Writing PNG every %v to %s", *port, *baud, *update, *out)

	ticker := time.NewTicker(*update)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			finish(log, c, *out, *title)
			return
		case err := <-readErr:
			if err != nil {
				log.Error("Serial error: %v", err)
			}
			finish(log, c, *out, *title)
			return
		case <-ticker.C:
			if err := c.SavePNG(*out, *title); err != nil {
				log.Warn("%v", err)
			}
		}
	}
}

func finish(log *utils.Logger, c *Collector, out, title string) {
	if err := c.SavePNG(out, title); err != nil {
		log.Error("%v", err)
	}
	for _, s := range c.Stats() {
		log.Info("%-12s n=%d mean=%.3f std=%.3f last=%.3f", s.Name, c.Len(), s.Mean, s.Std, s.Last)
	}
	log.Info("Exited. samples=%d skipped_lines=%d", c.Len(), c.Skipped())
}
