// Command vpti-mem-vp is a minimal in-memory virtual platform that answers
// VPTI requests over a POSIX message queue or anonymous pipe, for exercising
// a driver implementation end to end without a real simulator attached.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rwth-ice/vpti"
	"github.com/rwth-ice/vpti/internal/logging"
)

func main() {
	var (
		transportFlag = flag.String("transport", "mq", "transport to serve over: mq or pipe")
		requestName   = flag.String("request-queue", "/vpti-mem-requests", "mq request queue name")
		responseName  = flag.String("response-queue", "/vpti-mem-responses", "mq response queue name")
		receiverID    = flag.Uint("receiver-id", 0, "mq receiver identifier (0 accepts all)")
		requestFD     = flag.Int("request-fd", 3, "pipe request file descriptor")
		responseFD    = flag.Int("response-fd", 4, "pipe response file descriptor")
		stopTimeout   = flag.Duration("stop-timeout", 2*time.Second, "how long to wait for the receiver loop to exit on shutdown")
		logLevel      = flag.String("log-level", "info", "debug, info, warn, or error")
	)
	flag.Parse()

	logger := logging.NewLogger(&logging.Config{Level: parseLevel(*logLevel), Output: os.Stderr})
	logging.SetDefault(logger)

	handler := vpti.NewMockHandler()
	options := &vpti.Options{Logger: logger, Coverage: handler.Coverage()}

	var (
		receiver *vpti.Receiver
		err      error
	)
	switch *transportFlag {
	case "mq":
		receiver, err = vpti.NewMQReceiver(*requestName, *responseName, uint32(*receiverID), handler, options)
	case "pipe":
		receiver, err = vpti.NewPipeReceiver(*requestFD, *responseFD, handler, options)
	default:
		fmt.Fprintf(os.Stderr, "unknown -transport %q: want mq or pipe\n", *transportFlag)
		os.Exit(2)
	}
	if err != nil {
		logger.Errorf("constructing receiver: %v", err)
		os.Exit(1)
	}

	if err := receiver.Start(); err != nil {
		logger.Errorf("starting receiver: %v", err)
		os.Exit(1)
	}
	logger.Infof("vpti-mem-vp serving over %s", *transportFlag)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Infof("shutting down")
	if err := receiver.Stop(*stopTimeout); err != nil {
		logger.Errorf("stopping receiver: %v", err)
	}

	snap := receiver.MetricsSnapshot()
	logger.Infof("served %d requests (%d errors, %d malformed), uptime %s",
		snap.TotalRequests, snap.TotalErrors, snap.MalformedRequests, time.Duration(snap.UptimeNs))
}

func parseLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

