// swmon supervises host liveness: it samples CPU, memory, and network
// activity and keeps the hardware watchdog fed only while the system shows
// signs of life. A hung host stops feeding and the hardware reboots it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"swmon/internal/config"
	"swmon/internal/monitor"
	"swmon/internal/sampler"
	"swmon/internal/utils"
	"swmon/internal/version"
	"swmon/internal/watchdog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	warn := func(msg string) { fmt.Fprintln(os.Stderr, msg) }

	cfg, err := config.ParseArgs(args, os.Stderr, warn)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cfg.ShowVersion {
		fmt.Printf("swmon %s\n", version.String())
		return 0
	}

	printBanner(cfg)

	logger := utils.NewLogger(cfg.LogFile, cfg.LogEnabled)
	defer logger.Close()

	var port watchdog.Port
	if cfg.DryRun {
		logger.Write("Dry run: using simulated watchdog device")
		port = watchdog.NewSimulator()
	} else {
		port = watchdog.NewDevice(cfg.DevicePath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := monitor.New(cfg, logger, watchdog.NewHandle(port), sampler.NewSystem())

	logger.Writef("System watchdog monitor started (timeout: %d sec, interval: %d sec)",
		int(cfg.WatchdogTimeout.Seconds()), int(cfg.CPUInterval.Seconds()))

	// On reboot-pending the device stays armed; the process exits cleanly
	// and the hardware takes it from here.
	if _, err := sup.Run(ctx); err != nil {
		return 1
	}
	return 0
}

func printBanner(cfg *config.Config) {
	fmt.Println("Starting System Watchdog Monitor")
	fmt.Println("Configuration:")
	fmt.Printf("  Watchdog timeout: %d seconds\n", int(cfg.WatchdogTimeout.Seconds()))
	fmt.Printf("  CPU interval: %d seconds\n", int(cfg.CPUInterval.Seconds()))
	fmt.Printf("  Memory interval: %d seconds\n", int(cfg.MemInterval.Seconds()))
	fmt.Printf("  Network interval: %d seconds\n", int(cfg.NetInterval.Seconds()))
	fmt.Printf("  Max inactive cycles: %d\n", cfg.MaxInactiveCycles)
	fmt.Printf("  CPU threshold: %.1f%%\n", cfg.CPUThreshold)
	fmt.Printf("  Max CPU threshold: %.1f%% (restart if exceeded)\n", cfg.MaxCPUThreshold)
	fmt.Printf("  Memory threshold: %d bytes\n", cfg.MemThreshold)
	fmt.Printf("  Network threshold: %d bytes\n", cfg.NetThreshold)
	logState := "enabled"
	if !cfg.LogEnabled {
		logState = "disabled"
	}
	fmt.Printf("  Log file: %s (%s)\n", cfg.LogFile, logState)
	fmt.Println()
}
