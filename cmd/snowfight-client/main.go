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

// Command snowfight-client is a smoke-test CLI exercising the connect
// flow, a ping/pong round trip, and a graceful close against a
// snowfightd server (§8 "End-to-end scenarios"). snowfightd itself only
// logs the payloads it receives and sends no Connect or Pong, so against
// it both waits end with their timeout message.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/snowfight-game/core/internal/bitio"
	"github.com/snowfight-game/core/internal/config"
	"github.com/snowfight-game/core/internal/rabbit"
	"github.com/snowfight-game/core/internal/transport"
)

var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "snowfight-client"
	myApp.Usage = "Snow Fight session client smoke test"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "server, s", Value: "127.0.0.1:29900", Usage: "server UDP address"},
		cli.BoolFlag{Name: "nocomp", Usage: "disable snappy payload compression"},
		cli.IntFlag{Name: "retransmitms", Value: 100, Usage: "retransmit tick interval, milliseconds"},
		cli.StringFlag{Name: "c", Value: "", Usage: "config from json file, which will override the command from shell"},
	}
	myApp.Action = run

	if err := myApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultClientConfig()
	cfg.Server = c.String("server")
	cfg.NoComp = c.Bool("nocomp")
	cfg.RetransmitMS = c.Int("retransmitms")
	if path := c.String("c"); path != "" {
		loaded, err := config.ParseClientConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	raddr, err := net.ResolveUDPAddr("udp", cfg.Server)
	if err != nil {
		return err
	}

	ep, err := transport.NewEndpoint(&net.UDPAddr{IP: net.IPv4zero, Port: 0}, nil)
	if err != nil {
		return err
	}
	defer ep.Close()
	ep.SetCompression(!cfg.NoComp)
	ep.SetRetransmitInterval(cfg.RetransmitInterval())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries := make(chan transport.Delivery, 8)
	go ep.Run(ctx, func(d transport.Delivery) { deliveries <- d })

	color.Cyan("connecting to %s", raddr)
	ep.Dial(raddr)

	// Connect flow (§8 scenario 1): wait for the server's reliable
	// Connect message, decode it, and print the assigned player id.
	select {
	case d := <-deliveries:
		msg, err := rabbit.ReadServerMessage(bitio.NewReader(d.Payload))
		if err != nil {
			return err
		}
		if resp, ok := msg.Body.(rabbit.Response); ok {
			if conn, ok := resp.Kind.(rabbit.Connect); ok {
				color.Green("connected as player %d", conn.Player)
			}
		}
	case <-time.After(5 * time.Second):
		color.Red("timed out waiting for Connect")
	}

	// Ping/Pong (§8 scenario 2): send an unreliable Ping, expect a Pong.
	pingMsg := rabbit.ClientMessage{Body: rabbit.Request{Channel: 7, Kind: rabbit.Ping{}}}
	w := bitio.NewWriter(0)
	pingMsg.WriteTo(w)
	if err := ep.SendMessage(raddr, w.Bytes(), false); err != nil {
		return err
	}

	select {
	case d := <-deliveries:
		msg, err := rabbit.ReadServerMessage(bitio.NewReader(d.Payload))
		if err != nil {
			return err
		}
		if resp, ok := msg.Body.(rabbit.Response); ok {
			if _, ok := resp.Kind.(rabbit.Pong); ok {
				color.Green("pong received on channel %d", resp.Channel)
			}
		}
	case <-time.After(5 * time.Second):
		color.Red("timed out waiting for Pong")
	}

	// Graceful close (§8 scenario 4): tear down and stop retransmitting.
	if err := ep.CloseSession(raddr); err != nil {
		color.Red("close: %v", err)
	}
	return nil
}
