// Command sensorgate is the sensor-gateway daemon: it accepts TCP
// connections from sensor nodes, fans readings out to a process consumer
// and a store consumer through the shared pipeline buffer, and reclaims
// each record once both have observed it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/erbas/sensorgate/internal/config"
	"github.com/erbas/sensorgate/internal/supervisor"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: sensorgate <port number>")
}

// parsePort mirrors the original C entrypoint's contract exactly: argc
// must be 2 (program name plus one argument), and the argument must be an
// unsigned decimal integer with no trailing residue. Anything else prints
// the usage line and the caller exits 255.
func parsePort(args []string) (int, bool) {
	if len(args) != 2 {
		return 0, false
	}
	raw := args[1]
	if raw == "" {
		return 0, false
	}
	port, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, false
	}
	return int(port), true
}

func main() {
	os.Exit(run())
}

func run() int {
	port, ok := parsePort(os.Args)
	if !ok {
		usage()
		return config.ExitUsage
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return config.ExitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(cfg, log)
	if err := sup.Run(ctx, port); err != nil {
		log.WithError(err).Error("sensorgate exited with an error")
		return exitCodeFor(err)
	}
	return config.ExitOK
}

// exitCodeFor maps a setup failure to one of the distinguished non-zero
// codes spec.md §6 asks for. Anything it doesn't recognize, a worker
// failure included, falls back to ExitBindError, so it stays non-zero and
// clear of 255 (0 and 255 are reserved).
func exitCodeFor(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "binding listener"):
		return config.ExitBindError
	case strings.Contains(msg, "opening store"), strings.Contains(msg, "bootstrapping schema"):
		return config.ExitDBError
	case strings.Contains(msg, "loading sensor room map"):
		return config.ExitMapError
	default:
		return config.ExitBindError
	}
}
