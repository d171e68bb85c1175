// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/snowfight-game/core/internal/config"
	"github.com/snowfight-game/core/internal/diag"
	"github.com/snowfight-game/core/internal/metrics"
	"github.com/snowfight-game/core/internal/transport"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "snowfightd"
	myApp.Usage = "Snow Fight session server"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "listen, l", Value: ":29900", Usage: "UDP listen address"},
		cli.StringFlag{Name: "metricsaddr", Value: ":2112", Usage: "Prometheus /metrics listen address"},
		cli.BoolFlag{Name: "nocomp", Usage: "disable snappy payload compression"},
		cli.IntFlag{Name: "retransmitms", Value: 100, Usage: "retransmit/idle-timeout tick interval, milliseconds"},
		cli.StringFlag{Name: "snmplog", Value: "", Usage: "collect session counters to file, aware of timeformat in golang, like: ./snmp-20060102.log"},
		cli.IntFlag{Name: "snmpperiod", Value: 60, Usage: "snmp collect period, in seconds"},
		cli.BoolFlag{Name: "quiet", Usage: "suppress connect/disconnect messages"},
		cli.StringFlag{Name: "c", Value: "", Usage: "config from json file, which will override the command from shell"},
	}
	myApp.Action = run

	if err := myApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultServerConfig()
	cfg.Listen = c.String("listen")
	cfg.MetricsAddr = c.String("metricsaddr")
	cfg.NoComp = c.Bool("nocomp")
	cfg.RetransmitMS = c.Int("retransmitms")
	cfg.SnmpLog = c.String("snmplog")
	cfg.SnmpPeriod = c.Int("snmpperiod")
	cfg.Quiet = c.Bool("quiet")

	if path := c.String("c"); path != "" {
		loaded, err := config.ParseServerConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log.Println("listening on:", cfg.Listen)
	log.Println("metrics on:", cfg.MetricsAddr)
	log.Println("compression:", !cfg.NoComp)
	log.Println("retransmit interval:", cfg.RetransmitInterval())

	laddr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		return err
	}

	reg := metrics.New()
	ep, err := transport.NewEndpoint(laddr, reg)
	if err != nil {
		return err
	}
	defer ep.Close()
	ep.SetCompression(!cfg.NoComp)
	ep.SetRetransmitInterval(cfg.RetransmitInterval())

	go func() {
		log.Println("serving metrics on", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, reg.Handler()); err != nil {
			log.Println("metrics server:", err)
		}
	}()

	stop := make(chan struct{})
	go diag.PeriodicCSVDump(cfg.SnmpLog, cfg.SnmpPeriod, func() diag.Snapshot {
		return diag.Snapshot{ActiveSessions: ep.Table().Len()}
	}, stop)
	defer close(stop)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				reg.SetActiveSessions(ep.Table().Len())
			case <-stop:
				return
			}
		}
	}()

	registerSignalHandler(ep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return ep.Run(ctx, func(d transport.Delivery) {
		if !cfg.Quiet {
			color.Green("payload delivered from %s (%d bytes)", d.Addr, len(d.Payload))
		}
		// Decoding into an application message (internal/rabbit) and
		// dispatching it to the game simulation happens above this core;
		// that collaborator is out of scope here (§1 Non-goals).
	})
}
