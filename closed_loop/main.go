package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"corridor-pilot/utils"
)

func main() {
	var (
		iface     = flag.String("iface", "vcan0", "SocketCAN interface name")
		mapPath   = flag.String("map", "config/can/can_map.csv", "Path to can_map.csv")
		cfgPath   = flag.String("config", "config/vehicle.json", "Vehicle config JSON (empty for built-in defaults)")
		scenPath  = flag.String("scenario", "", "Bench scenario JSON; replaces CAN sensor input")
		dryRun    = flag.Bool("dry-run", false, "Log actuator commands instead of transmitting them")
		telPort   = flag.String("telemetry", "", "Serial port for the error/P/D/distance stream")
		telBaud   = flag.Int("telemetry-baud", 115200, "Telemetry baud rate")
		record    = flag.String("record", "", "SQLite file to record every cycle into")
		diagEvery = flag.Uint64("diag-every", 20, "Log steering diagnostics every N cycles")
		logPath   = flag.String("logfile", "closed_loop.log", "Log file path")
		logLevel  = flag.String("log", "info", "trace|debug|info|warn|error|critical")
	)
	flag.Parse()

	cfg := RunnerConfig{
		Interface:     *iface,
		MapPath:       *mapPath,
		ConfigPath:    *cfgPath,
		ScenarioPath:  *scenPath,
		DryRun:        *dryRun,
		TelemetryPort: *telPort,
		TelemetryBaud: *telBaud,
		RecordPath:    *record,
		DiagEvery:     *diagEvery,
	}

	os.Exit(run(cfg, *logPath, *logLevel))
}

// run owns every deferred cleanup so the exit code is returned only after the
// runner, recorder and log file are closed.
func run(cfg RunnerConfig, logPath, logLevel string) int {
	log, err := utils.NewFileLogger(logPath, utils.ParseLevel(logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open " + logPath + ": " + err.Error() + "\n")
		return 1
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		return 1
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		return 1
	}
	return 0
}
