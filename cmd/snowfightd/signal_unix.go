//go:build linux || darwin || freebsd

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/snowfight-game/core/internal/transport"
)

func registerSignalHandler(ep *transport.Endpoint) {
	go sigHandler(ep)
}

func sigHandler(ep *transport.Endpoint) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	signal.Ignore(syscall.SIGPIPE)

	for range ch {
		log.Printf("sessions active: %d", ep.Table().Len())
	}
}
