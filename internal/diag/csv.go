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

// Package diag periodically snapshots session counters to a CSV file,
// adapted from the teacher's SnmpLogger.
package diag

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is one row of counters, gathered by the caller (typically from
// an internal/metrics.Registry via its own accounting) at dump time.
type Snapshot struct {
	ActiveSessions      int
	PacketsSent         uint64
	PacketsReceived     uint64
	ChunksRetransmitted uint64
	AcksSent            uint64
	HandshakeFailures   uint64
	SessionTimeouts     uint64
	PayloadsDelivered   uint64
	DecodeErrors        uint64
}

func (s Snapshot) header() []string {
	return []string{
		"ActiveSessions", "PacketsSent", "PacketsReceived", "ChunksRetransmitted",
		"AcksSent", "HandshakeFailures", "SessionTimeouts", "PayloadsDelivered",
		"DecodeErrors",
	}
}

func (s Snapshot) row() []string {
	return []string{
		fmt.Sprint(s.ActiveSessions), fmt.Sprint(s.PacketsSent), fmt.Sprint(s.PacketsReceived),
		fmt.Sprint(s.ChunksRetransmitted), fmt.Sprint(s.AcksSent), fmt.Sprint(s.HandshakeFailures),
		fmt.Sprint(s.SessionTimeouts), fmt.Sprint(s.PayloadsDelivered), fmt.Sprint(s.DecodeErrors),
	}
}

// PeriodicCSVDump appends a timestamped Snapshot row to path every
// interval seconds until stop is closed. path == "" or interval == 0
// disables the dump, matching the teacher's SnmpLogger no-op guard.
func PeriodicCSVDump(path string, interval int, snapshot func() Snapshot, stop <-chan struct{}) {
	if path == "" || interval == 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			dumpOnce(path, snapshot())
		}
	}
}

func dumpOnce(path string, snap Snapshot) {
	logdir, logfile := filepath.Split(path)
	f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Println(err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(append([]string{"Unix"}, snap.header()...)); err != nil {
			log.Println(err)
		}
	}
	if err := w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, snap.row()...)); err != nil {
		log.Println(err)
	}
	w.Flush()
}
