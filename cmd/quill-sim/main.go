package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/inkhq/quill/internal/simulate"
)

// Default configuration constants.
const (
	defaultUsers      = 100
	defaultDays       = 30
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultSimTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users    = flag.Int("users", defaultUsers, "Number of simulated users")
		days     = flag.Int("days", defaultDays, "Length of each posting calendar in days")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		timezone = flag.String("tz", "UTC", "IANA timezone for the simulated users")
		seed     = flag.Int64("seed", 0, "Seed for reproducible calendars (0 = time-based)")
		logFile  = flag.String("log", "", "Log file for simulation output (default: sim_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	// Setup logging
	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultSimTimeout)
	defer cancel()

	// Create simulation configuration
	config := &simulate.Config{
		BaseURL:  *baseURL,
		Users:    *users,
		Days:     *days,
		Workers:  *workers,
		Timeout:  *timeout,
		Timezone: *timezone,
		Seed:     *seed,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}

	// Run the simulation
	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
