package config

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults mirror the shipped daemon configuration.
const (
	DefaultWatchdogTimeout   = 60 * time.Second
	DefaultMonitorInterval   = 10 * time.Second
	DefaultMaxInactiveCycles = 3
	DefaultCPUThreshold      = 5.0
	DefaultMaxCPUThreshold   = 90.0
	DefaultMemThreshold      = 1024
	DefaultNetThreshold      = 100
	DefaultConfigFile        = "/etc/swmon.conf"
	DefaultLogFile           = "/var/log/swmon.log"
	DefaultDevicePath        = "/dev/watchdog"

	// MinWatchdogTimeout is the safety floor: the supervisor loop needs
	// room to revisit the grace logic before the hardware fires.
	MinWatchdogTimeout = 10 * time.Second
)

// Config is the immutable runtime configuration of the supervisor daemon.
type Config struct {
	WatchdogTimeout time.Duration

	CPUInterval time.Duration
	MemInterval time.Duration
	NetInterval time.Duration

	MaxInactiveCycles int

	CPUThreshold    float64
	MaxCPUThreshold float64
	MemThreshold    uint64
	NetThreshold    uint64

	LogFile    string
	LogEnabled bool

	DevicePath string
	DryRun     bool

	// ShowVersion is set by the --version flag; not a config file key.
	ShowVersion bool
}

// Default returns a Config populated with the shipped defaults.
func Default() *Config {
	return &Config{
		WatchdogTimeout:   DefaultWatchdogTimeout,
		CPUInterval:       DefaultMonitorInterval,
		MemInterval:       DefaultMonitorInterval,
		NetInterval:       DefaultMonitorInterval,
		MaxInactiveCycles: DefaultMaxInactiveCycles,
		CPUThreshold:      DefaultCPUThreshold,
		MaxCPUThreshold:   DefaultMaxCPUThreshold,
		MemThreshold:      DefaultMemThreshold,
		NetThreshold:      DefaultNetThreshold,
		LogFile:           DefaultLogFile,
		LogEnabled:        true,
		DevicePath:        DefaultDevicePath,
	}
}

// LoadFile merges key=value pairs from path into the config. Lines starting
// with '#' and blank lines are skipped; unknown keys are ignored silently.
// A malformed numeric value is reported through warn and otherwise ignored.
func (c *Config) LoadFile(path string, warn func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		c.apply(key, value, warn)
	}
	return scanner.Err()
}

func (c *Config) apply(key, value string, warn func(string)) {
	if warn == nil {
		warn = func(string) {}
	}
	badValue := func() {
		warn(fmt.Sprintf("Warning: ignoring invalid value %q for %s", value, key))
	}

	switch key {
	case "watchdog_timeout":
		if secs, err := strconv.Atoi(value); err == nil {
			c.WatchdogTimeout = time.Duration(secs) * time.Second
		} else {
			badValue()
		}
	case "monitor_interval":
		if secs, err := strconv.Atoi(value); err == nil {
			iv := time.Duration(secs) * time.Second
			c.CPUInterval, c.MemInterval, c.NetInterval = iv, iv, iv
		} else {
			badValue()
		}
	case "cpu_interval":
		if secs, err := strconv.Atoi(value); err == nil {
			c.CPUInterval = time.Duration(secs) * time.Second
		} else {
			badValue()
		}
	case "mem_interval":
		if secs, err := strconv.Atoi(value); err == nil {
			c.MemInterval = time.Duration(secs) * time.Second
		} else {
			badValue()
		}
	case "net_interval":
		if secs, err := strconv.Atoi(value); err == nil {
			c.NetInterval = time.Duration(secs) * time.Second
		} else {
			badValue()
		}
	case "max_inactive_cycles":
		if n, err := strconv.Atoi(value); err == nil {
			c.MaxInactiveCycles = n
		} else {
			badValue()
		}
	case "cpu_threshold":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			c.CPUThreshold = v
		} else {
			badValue()
		}
	case "max_cpu_threshold":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			c.MaxCPUThreshold = v
		} else {
			badValue()
		}
	case "mem_threshold":
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			c.MemThreshold = v
		} else {
			badValue()
		}
	case "net_threshold":
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			c.NetThreshold = v
		} else {
			badValue()
		}
	case "log_file":
		c.LogFile = value
	case "log_enabled":
		switch value {
		case "1", "true", "yes":
			c.LogEnabled = true
		case "0", "false", "no":
			c.LogEnabled = false
		default:
			badValue()
		}
	default:
		// Unknown keys are ignored so newer config files keep working
		// with older binaries.
	}
}

// Validate clamps out-of-range values to safe ones and reports each
// correction through warn. Invalid combinations are never fatal.
func (c *Config) Validate(warn func(string)) {
	if warn == nil {
		warn = func(string) {}
	}

	if c.WatchdogTimeout < MinWatchdogTimeout {
		warn(fmt.Sprintf("Warning: watchdog timeout too low, setting to minimum of %d seconds",
			int(MinWatchdogTimeout.Seconds())))
		c.WatchdogTimeout = MinWatchdogTimeout
	}

	clampInterval := func(name string, iv *time.Duration) {
		if *iv < time.Second || *iv > c.WatchdogTimeout/2 {
			corrected := c.WatchdogTimeout / 6
			warn(fmt.Sprintf("Warning: invalid %s interval, setting to %d seconds",
				name, int(corrected.Seconds())))
			*iv = corrected
		}
	}
	clampInterval("CPU", &c.CPUInterval)
	clampInterval("memory", &c.MemInterval)
	clampInterval("network", &c.NetInterval)

	if c.MaxInactiveCycles < 1 {
		warn("Warning: invalid max inactive cycles, setting to minimum of 1")
		c.MaxInactiveCycles = 1
	}

	if c.MaxCPUThreshold <= c.CPUThreshold {
		corrected := c.CPUThreshold + 50.0
		warn(fmt.Sprintf("Warning: max CPU threshold (%.1f%%) must be greater than min CPU threshold (%.1f%%), setting to %.1f%%",
			c.MaxCPUThreshold, c.CPUThreshold, corrected))
		c.MaxCPUThreshold = corrected
	}
	if c.MaxCPUThreshold > 100.0 {
		warn("Warning: max CPU threshold too high, setting to 100%")
		c.MaxCPUThreshold = 100.0
	}
}

// ParseArgs builds the daemon configuration from defaults, the default
// config file (when present), an explicit --config file, and finally the
// command-line flags, in that precedence order. Help requests surface as
// flag.ErrHelp.
func ParseArgs(args []string, output io.Writer, warn func(string)) (*Config, error) {
	fs := flag.NewFlagSet("swmon", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		configPath string
		timeout    int
		monitor    int
		cpuIv      int
		memIv      int
		netIv      int
		inactive   int
		cpuThresh  float64
		maxCPU     float64
		memThresh  uint64
		netThresh  uint64
		logFile    string
		disableLog bool
		device      string
		dryRun      bool
		showVersion bool
	)

	fs.StringVar(&configPath, "config", "", "configuration file path")
	fs.StringVar(&configPath, "c", "", "configuration file path (shorthand)")
	fs.IntVar(&timeout, "timeout", int(DefaultWatchdogTimeout.Seconds()), "watchdog timeout in seconds")
	fs.IntVar(&timeout, "w", int(DefaultWatchdogTimeout.Seconds()), "watchdog timeout in seconds (shorthand)")
	fs.IntVar(&monitor, "monitor", int(DefaultMonitorInterval.Seconds()), "monitoring interval in seconds for all resources")
	fs.IntVar(&monitor, "m", int(DefaultMonitorInterval.Seconds()), "monitoring interval in seconds (shorthand)")
	fs.IntVar(&cpuIv, "cpu-interval", 0, "CPU check interval in seconds (overrides --monitor)")
	fs.IntVar(&memIv, "mem-interval", 0, "memory check interval in seconds (overrides --monitor)")
	fs.IntVar(&netIv, "net-interval", 0, "network check interval in seconds (overrides --monitor)")
	fs.IntVar(&inactive, "inactive", DefaultMaxInactiveCycles, "max inactive cycles before reboot")
	fs.IntVar(&inactive, "i", DefaultMaxInactiveCycles, "max inactive cycles before reboot (shorthand)")
	fs.Float64Var(&cpuThresh, "cpu", DefaultCPUThreshold, "CPU activity threshold percentage")
	fs.Float64Var(&cpuThresh, "p", DefaultCPUThreshold, "CPU activity threshold percentage (shorthand)")
	fs.Float64Var(&maxCPU, "max-cpu", DefaultMaxCPUThreshold, "maximum CPU threshold for restart")
	fs.Float64Var(&maxCPU, "x", DefaultMaxCPUThreshold, "maximum CPU threshold for restart (shorthand)")
	fs.Uint64Var(&memThresh, "memory", DefaultMemThreshold, "memory change threshold in bytes")
	fs.Uint64Var(&memThresh, "e", DefaultMemThreshold, "memory change threshold in bytes (shorthand)")
	fs.Uint64Var(&netThresh, "network", DefaultNetThreshold, "network activity threshold in bytes")
	fs.Uint64Var(&netThresh, "n", DefaultNetThreshold, "network activity threshold in bytes (shorthand)")
	fs.StringVar(&logFile, "log-file", DefaultLogFile, "log file path")
	fs.StringVar(&logFile, "l", DefaultLogFile, "log file path (shorthand)")
	fs.BoolVar(&disableLog, "disable-log", false, "disable writing to the log file")
	fs.BoolVar(&disableLog, "d", false, "disable writing to the log file (shorthand)")
	fs.StringVar(&device, "device", DefaultDevicePath, "watchdog device path")
	fs.BoolVar(&dryRun, "dry-run", false, "use a simulated watchdog instead of the hardware device")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")

	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	// Config files first, flags override.
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		if err := cfg.LoadFile(DefaultConfigFile, warn); err == nil && warn != nil {
			warn(fmt.Sprintf("Loaded configuration from %s", DefaultConfigFile))
		}
	}
	if configPath != "" {
		if err := cfg.LoadFile(configPath, warn); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
		if warn != nil {
			warn(fmt.Sprintf("Loaded configuration from %s", configPath))
		}
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["timeout"] || set["w"] {
		cfg.WatchdogTimeout = time.Duration(timeout) * time.Second
	}
	if set["monitor"] || set["m"] {
		iv := time.Duration(monitor) * time.Second
		cfg.CPUInterval, cfg.MemInterval, cfg.NetInterval = iv, iv, iv
	}
	if set["cpu-interval"] {
		cfg.CPUInterval = time.Duration(cpuIv) * time.Second
	}
	if set["mem-interval"] {
		cfg.MemInterval = time.Duration(memIv) * time.Second
	}
	if set["net-interval"] {
		cfg.NetInterval = time.Duration(netIv) * time.Second
	}
	if set["inactive"] || set["i"] {
		cfg.MaxInactiveCycles = inactive
	}
	if set["cpu"] || set["p"] {
		cfg.CPUThreshold = cpuThresh
	}
	if set["max-cpu"] || set["x"] {
		cfg.MaxCPUThreshold = maxCPU
	}
	if set["memory"] || set["e"] {
		cfg.MemThreshold = memThresh
	}
	if set["network"] || set["n"] {
		cfg.NetThreshold = netThresh
	}
	if set["log-file"] || set["l"] {
		cfg.LogFile = logFile
	}
	if disableLog {
		cfg.LogEnabled = false
	}
	cfg.DevicePath = device
	cfg.DryRun = dryRun
	cfg.ShowVersion = showVersion

	if showVersion {
		return cfg, nil
	}

	cfg.Validate(warn)
	return cfg, nil
}

func printUsage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "Usage: swmon [OPTIONS]")
	fmt.Fprintln(out, "Options:")
	fmt.Fprintf(out, "  -c, --config FILE       Use configuration file (default: %s)\n", DefaultConfigFile)
	fmt.Fprintf(out, "  -w, --timeout SECS      Set watchdog timeout in seconds (default: %d)\n", int(DefaultWatchdogTimeout.Seconds()))
	fmt.Fprintf(out, "  -m, --monitor SECS      Set monitoring interval in seconds (default: %d)\n", int(DefaultMonitorInterval.Seconds()))
	fmt.Fprintln(out, "      --cpu-interval SECS Set CPU check interval in seconds")
	fmt.Fprintln(out, "      --mem-interval SECS Set memory check interval in seconds")
	fmt.Fprintln(out, "      --net-interval SECS Set network check interval in seconds")
	fmt.Fprintf(out, "  -i, --inactive NUM      Set max inactive cycles before reboot (default: %d)\n", DefaultMaxInactiveCycles)
	fmt.Fprintf(out, "  -p, --cpu PERCENT       Set CPU activity threshold percentage (default: %.1f)\n", DefaultCPUThreshold)
	fmt.Fprintf(out, "  -x, --max-cpu PERCENT   Set maximum CPU threshold for restart (default: %.1f)\n", DefaultMaxCPUThreshold)
	fmt.Fprintf(out, "  -e, --memory BYTES      Set memory change threshold in bytes (default: %d)\n", DefaultMemThreshold)
	fmt.Fprintf(out, "  -n, --network BYTES     Set network activity threshold in bytes (default: %d)\n", DefaultNetThreshold)
	fmt.Fprintf(out, "  -l, --log-file FILE     Set log file path (default: %s)\n", DefaultLogFile)
	fmt.Fprintln(out, "  -d, --disable-log       Disable writing to log file")
	fmt.Fprintf(out, "      --device PATH       Watchdog device path (default: %s)\n", DefaultDevicePath)
	fmt.Fprintln(out, "      --dry-run           Use a simulated watchdog device")
	fmt.Fprintln(out, "      --version           Print version and exit")
	fmt.Fprintln(out, "  -h, --help              Display this help message")
}
