// Command labmon babysits an instrument serial link: it keeps the port
// open, logs every line the instrument emits, and exposes an HTTP
// interface for status checks, allow-listed commands, and a live tail.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/quenchlab/labkit/internal/config"
	"github.com/quenchlab/labkit/internal/scpimux"
)

var (
	devMode    = flag.Bool("dev", false, "Run against a scripted mock port")
	listen     = flag.String("listen", ":8080", "Listen address")
	portPath   = flag.String("port", "", "Serial device path (overrides config)")
	configPath = flag.String("config", "", "Station config JSON")
	instName   = flag.String("instrument", "zm2376", "Instrument name in the config")
	logDir     = flag.String("logdir", ".", "Directory for the raw line log")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyStationConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadStationConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	instCfg := cfg.Instrument(*instName)

	path := instCfg.GetPort()
	if *portPath != "" {
		path = *portPath
	}

	var m scpimux.MuxInterface
	if *devMode {
		port := scpimux.NewScriptedPort(map[string]string{
			"*IDN?":   "DEV,MOCK,0,0.0",
			":fetch?": "0,+1.000000E-12,+2.00000E-03",
		})
		m = scpimux.NewMux[*scpimux.ScriptedPort](port, scpimux.PortOptions{})
	} else {
		if path == "" {
			log.Fatal("no serial port configured; use -port or -config")
		}
		var err error
		m, err = scpimux.Open(path, instCfg.GetSerial())
		if err != nil {
			log.Fatalf("failed to open instrument port: %v", err)
		}
	}
	defer m.Close()

	logFile, err := os.OpenFile(filepath.Join(*logDir, *instName+".log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("failed to open line log: %v", err)
	}
	defer logFile.Close()

	server := NewServer(m)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Monitor routine manages IO on the serial port.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor instrument port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// Subscribe to reply lines, append them to the raw log, and feed
	// the status counters.
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := m.Subscribe()
		defer m.Unsubscribe(id)
		for {
			select {
			case line := <-c:
				server.RecordLine(line)
				stamp := time.Now().Format(time.RFC3339)
				if _, err := logFile.WriteString(stamp + "\t" + line + "\n"); err != nil {
					log.Printf("failed to write line log: %v", err)
				}
			case <-ctx.Done():
				log.Print("subscribe routine terminated")
				return
			}
		}
	}()

	// HTTP server goroutine.
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpServer := &http.Server{
			Addr:    *listen,
			Handler: server.ServeMux(),
		}

		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Print("graceful shutdown complete")
}
