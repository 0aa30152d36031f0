// swmon-http exposes direct watchdog control over HTTP on port 9101. It is
// the manual counterpart to the swmon supervisor; running both against the
// same device is unsupported.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"swmon/internal/handlers"
	"swmon/internal/middleware"
	"swmon/internal/utils"
	"swmon/internal/version"
	"swmon/internal/watchdog"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const defaultPort = 9101 // aligned with the Prometheus exporter port range

type App struct {
	handle      *watchdog.Handle
	authService *middleware.AuthService
	wsHub       *middleware.Hub
	rateLimiter *middleware.RateLimiter
	logger      *utils.Logger
	tlsEnabled  bool
	tlsCertPath string
	tlsKeyPath  string
}

var app *App

const (
	envUseTLS  = "SWMON_USE_TLS"
	envTLSCert = "SWMON_TLS_CERT"
	envTLSKey  = "SWMON_TLS_KEY"
)

func envBool(key string) bool {
	val := os.Getenv(key)
	if val == "" {
		return false
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false
	}
	return parsed
}

func main() {
	var (
		port        int
		devicePath  string
		dryRun      bool
		showVersion bool
	)
	flag.IntVar(&port, "port", defaultPort, "HTTP server port")
	flag.IntVar(&port, "p", defaultPort, "HTTP server port (shorthand)")
	flag.StringVar(&devicePath, "device", "/dev/watchdog", "watchdog device path")
	flag.BoolVar(&dryRun, "dry-run", false, "use a simulated watchdog instead of the hardware device")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("swmon-http %s\n", version.String())
		return
	}
	if port <= 0 || port > 65535 {
		port = defaultPort
	}

	// Set Gin mode
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := utils.NewConsoleLogger(os.Stdout)

	var devicePort watchdog.Port
	if dryRun {
		logger.Write("Dry run: using simulated watchdog device")
		devicePort = watchdog.NewSimulator()
	} else {
		devicePort = watchdog.NewDevice(devicePath)
	}

	app = &App{
		handle:      watchdog.NewHandle(devicePort),
		authService: middleware.NewAuthServiceFromEnv(),
		wsHub:       middleware.NewHub(logger),
		rateLimiter: middleware.NewRateLimiter(rate.Every(time.Minute/100), 10),
		logger:      logger,
		tlsEnabled:  envBool(envUseTLS),
		tlsCertPath: os.Getenv(envTLSCert),
		tlsKeyPath:  os.Getenv(envTLSKey),
	}

	// Start WebSocket hub
	go app.wsHub.Run()

	h := handlers.NewWatchdogHandlers(app.handle, app.authService, app.wsHub, app.logger)
	r := handlers.NewRouter(h, app.rateLimiter)

	srv := &http.Server{
		Addr:           ":" + strconv.Itoa(port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if app.tlsEnabled {
		if app.tlsCertPath == "" || app.tlsKeyPath == "" {
			log.Fatalf("%s is enabled but %s or %s not provided", envUseTLS, envTLSCert, envTLSKey)
		}
		go func() {
			logger.Writef("Watchdog HTTP service running on port %d (TLS)", port)
			if err := srv.ListenAndServeTLS(app.tlsCertPath, app.tlsKeyPath); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTPS server failed to start: %v", err)
			}
		}()
	} else {
		go func() {
			logger.Writef("Watchdog HTTP service running on port %d", port)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed to start: %v", err)
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Write("Shutdown signal received. Cleaning up...")

	app.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// Disarm the device if a client left it running.
	if app.handle.Running() {
		logger.Write("Stopping watchdog...")
		if err := app.handle.Stop(); err != nil {
			logger.Writef("Warning: failed to stop watchdog: %v", err)
		}
	}

	logger.Write("Watchdog HTTP service stopped.")
}
