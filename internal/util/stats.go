package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide wire traffic counter. It is purely
// observational: nothing in the protocol reads it back.
var Stats = &stats{}

type stats struct {
	BytesSent   atomic.Int64 // cumulative bytes put on the wire
	BytesRecv   atomic.Int64 // cumulative bytes taken off the wire
	PacketsLost atomic.Int64 // cumulative packets dropped by fault injection
	Retransmits atomic.Int64 // cumulative retransmission attempts
}

func (s *stats) AddSent(n int)  { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)  { s.BytesRecv.Add(int64(n)) }
func (s *stats) AddLost()       { s.PacketsLost.Add(1) }
func (s *stats) AddRetransmit() { s.Retransmits.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs wire statistics every
// 5 seconds while a transfer is running. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()

				outS := float64(sent-prevSent) / 5.0
				inS := float64(recv-prevRecv) / 5.0

				if outS > 0 || inS > 0 {
					pterm.DefaultLogger.Info(fmt.Sprintf(
						"Out: %s/s | In: %s/s | Lost: %d | Retrans: %d",
						formatBytes(outS),
						formatBytes(inS),
						Stats.PacketsLost.Load(),
						Stats.Retransmits.Load(),
					))
				}

				prevSent = sent
				prevRecv = recv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}
