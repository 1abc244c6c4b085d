// Command eiscp-control is an interactive console for eISCP AV receivers.
//
// It discovers receivers on the local network, maintains a control
// session with one of them, and exposes the full command surface:
// fire-and-forget commands, synchronous queries, zone state snapshots
// and inventory resolution.
//
// Usage:
//
//	eiscp-control [flags]
//
// Flags:
//
//	-host string          Receiver address (connect on startup)
//	-port int             Control port (default 60128)
//	-resolution int       Volume resolution: 50, 80, 100 or 200 (default 50)
//	-protocol-log string  Write protocol events to a CBOR log file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Discover receivers, then connect from the console
//	eiscp-control
//
//	# Connect immediately and record the protocol exchange
//	eiscp-control -host 192.168.1.80 -protocol-log session.elog
//
// Interactive Commands:
//
//	discover              - Find receivers on the local network
//	connect <host>        - Open a control session
//	set <zone.attr=val>   - Send a command without waiting
//	get <zone.attr>       - Query a value and wait for the answer
//	raw <PWR01>           - Send a raw three-letter command
//	state [zone]          - Show cached zone state
//	refresh [zone]        - Re-query every attribute of a zone
//	inventory             - Resolve zones, sources and sound modes
//	walk sources|modes    - Enumerate by stepping the selector dial
//	quit                  - Exit the console
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eiscp-protocol/eiscp-go/cmd/eiscp-control/interactive"
	protolog "github.com/eiscp-protocol/eiscp-go/pkg/log"
)

// Config holds the console configuration.
type Config struct {
	Host        string
	Port        int
	Resolution  int
	ProtocolLog string
	LogLevel    string
}

var config Config

func init() {
	flag.StringVar(&config.Host, "host", "", "Receiver address (connect on startup)")
	flag.IntVar(&config.Port, "port", 60128, "Control port")
	flag.IntVar(&config.Resolution, "resolution", 50, "Volume resolution: 50, 80, 100 or 200")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write protocol events to a CBOR log file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	setupLogging(config.LogLevel)

	// Protocol logging is optional; without it events are dropped.
	var logger protolog.Logger = protolog.NoopLogger{}
	if config.ProtocolLog != "" {
		fileLogger, err := protolog.NewFileLogger(config.ProtocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fileLogger.Close()
		logger = fileLogger
		log.Printf("Protocol log: %s", config.ProtocolLog)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	console, err := interactive.New(interactive.Options{
		Host:       config.Host,
		Port:       config.Port,
		Resolution: config.Resolution,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to create console: %v", err)
	}

	// Redirect log output through readline to avoid interfering with input.
	log.SetOutput(console.Stdout())

	if config.Host != "" {
		if err := console.Connect(ctx, config.Host); err != nil {
			log.Printf("Connect failed: %v", err)
		}
	}

	go console.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Cancelled by the quit command.
	}

	cancel()
	console.Close()
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}
