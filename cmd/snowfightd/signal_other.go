//go:build !linux && !darwin && !freebsd

package main

import "github.com/snowfight-game/core/internal/transport"

func registerSignalHandler(ep *transport.Endpoint) {}
