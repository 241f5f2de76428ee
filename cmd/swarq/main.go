// Swarq — CLI entry point.
//
// This tool moves a byte stream across an unreliable datagram channel with
// a stop-and-wait ARQ: framed packets with a checksum, timeout-driven
// retransmission, and alternating-bit acknowledgments.
//
// Run it with no flags for an interactive local demo, or non-interactively
// via CLI flags (-role, -file, -loss, -corrupt, ...). The send/recv roles
// connect two processes over an unreliable WebRTC DataChannel.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/swarq-dev/swarq/internal/arq"
	"github.com/swarq-dev/swarq/internal/channel"
	"github.com/swarq-dev/swarq/internal/link"
	"github.com/swarq-dev/swarq/internal/signaling"
	"github.com/swarq-dev/swarq/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	role := flag.String("role", "", "Role: local, send, or recv")
	file := flag.String("file", "", "File to transfer (send/local) or output path (recv)")
	size := flag.Int("size", 64*1024, "Generated payload size in bytes when no -file is given")
	loss := flag.Float64("loss", 0.1, "Packet loss probability, 0~1")
	corrupt := flag.Float64("corrupt", 0.05, "Checksum corruption probability, 0~1")
	delay := flag.Int("delay", 20, "Simulated one-way latency in milliseconds")
	timeout := flag.Int("timeout", 2000, "Ack timeout in milliseconds")
	retries := flag.Int("retries", arq.DefaultMaxRetries, "Transmission attempts per chunk before aborting")
	wsPort := flag.Int("wsPort", 0, "WebSocket signaling port (recv role)")
	wsURL := flag.String("wsUrl", "", "WebSocket URL of the receiver (send role)")
	seed := flag.Uint64("seed", 0, "Random seed for reproducible fault injection (0 = nondeterministic)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Swarq — v%s", version))
	pterm.Println()

	cfg := channel.NewConfig(*loss, *corrupt, time.Duration(*delay)*time.Millisecond)
	var rng channel.Rand
	if *seed != 0 {
		rng = channel.NewSeededRand(*seed)
	}
	scfg := arq.SenderConfig{
		AckTimeout: time.Duration(*timeout) * time.Millisecond,
		MaxRetries: *retries,
	}

	switch *role {
	case "":
		// No -role flag → interactive mode.
		runInteractive(ctx, cfg, rng, scfg, *file, *size)

	case "local":
		runLocal(ctx, cfg, rng, scfg, *file, *size)

	case "send":
		if *wsURL == "" {
			util.LogError("missing -wsUrl for send role")
			os.Exit(1)
		}
		url, err := normalizeWSURL(*wsURL)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		runSend(ctx, cfg, rng, scfg, url, *file, *size)

	case "recv":
		wsAddr := ":0"
		if *wsPort > 0 {
			wsAddr = fmt.Sprintf(":%d", *wsPort)
		}
		runRecv(ctx, cfg, rng, wsAddr, *file)

	default:
		util.LogError("invalid -role: must be 'local', 'send', or 'recv'")
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive falls back to interactive prompts when no -role flag is
// provided.
func runInteractive(ctx context.Context, cfg channel.Config, rng channel.Rand, scfg arq.SenderConfig, file string, size int) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{
			"Local — Simulate a transfer in-process",
			"Send  — Transfer a file to a remote receiver",
			"Recv  — Receive a file from a remote sender",
		}).
		WithDefaultText("Select a mode").
		Show()

	pterm.Println()

	switch {
	case strings.HasPrefix(role, "Local"):
		runLocal(ctx, cfg, rng, scfg, file, size)
	case strings.HasPrefix(role, "Send"):
		url := askURL()
		runSend(ctx, cfg, rng, scfg, url, file, size)
	default:
		port := askPort("Signaling port to listen on (1 ~ 65535)")
		runRecv(ctx, cfg, rng, fmt.Sprintf(":%d", port), file)
	}
}

// runLocal wires a sender and a receiver over an in-memory pipe, both
// directions fault-injected, and verifies the reconstructed bytes.
func runLocal(ctx context.Context, cfg channel.Config, rng channel.Rand, scfg arq.SenderConfig, file string, size int) {
	data, err := loadPayload(file, size)
	if err != nil {
		util.LogError("failed to load payload: %v", err)
		os.Exit(1)
	}

	util.LogInfo("local transfer: %d bytes, loss=%.2f corrupt=%.2f delay=%v",
		len(data), cfg.Loss, cfg.Corruption, cfg.Delay)
	util.StartStatsReporter(ctx)

	ch := channel.New(cfg, nil, rng)
	endA, endB := link.Pipe()
	defer endA.Close()
	defer endB.Close()

	sender := arq.NewSender(channel.NewEndpoint(ctx, ch, endA), arq.NewBytesSource(data, 0), nil, scfg)

	sink := &arq.BufferSink{}
	receiver := arq.NewReceiver(channel.NewEndpoint(ctx, ch, endB), sink, nil, arq.ReceiverConfig{})

	recvDone := make(chan error, 1)
	go func() { recvDone <- receiver.Run(ctx) }()

	start := time.Now()
	if err := sender.Run(ctx); err != nil {
		util.LogError("transfer failed: %v", err)
		os.Exit(1)
	}
	if err := <-recvDone; err != nil {
		util.LogError("receiver failed: %v", err)
		os.Exit(1)
	}

	if !bytes.Equal(sink.Bytes(), data) {
		util.LogError("reconstructed stream differs from the original (%d vs %d bytes)",
			len(sink.Bytes()), len(data))
		os.Exit(1)
	}

	util.LogSuccess("transfer complete in %v — %d bytes intact", time.Since(start).Round(time.Millisecond), len(data))
	printSummary(sender.Metrics, receiver.Metrics)
}

// runSend dials the receiver's signaling server and pushes the payload
// through the resulting DataChannel link.
func runSend(ctx context.Context, cfg channel.Config, rng channel.Rand, scfg arq.SenderConfig, wsURL, file string, size int) {
	data, err := loadPayload(file, size)
	if err != nil {
		util.LogError("failed to load payload: %v", err)
		os.Exit(1)
	}

	tr, err := signaling.EstablishAsPeer(ctx, wsURL)
	if err != nil {
		util.LogError("failed to establish link: %v", err)
		os.Exit(1)
	}
	defer tr.Close()

	util.StartStatsReporter(ctx)
	util.LogSuccess("P2P link established — sending %d bytes", len(data))

	sender := arq.NewSender(channel.NewEndpoint(ctx, channel.New(cfg, nil, rng), tr), arq.NewBytesSource(data, 0), nil, scfg)

	start := time.Now()
	if err := sender.Run(ctx); err != nil {
		util.LogError("transfer failed: %v", err)
		os.Exit(1)
	}
	util.LogSuccess("transfer complete in %v", time.Since(start).Round(time.Millisecond))
	util.LogInfo("sent=%d accepted=%d retransmitted=%d timeouts=%d",
		sender.Metrics.Sent, sender.Metrics.Accepted, sender.Metrics.Retransmitted, sender.Metrics.Timeouts)
}

// runRecv hosts the signaling server and writes the received stream to a
// file (or discards it when no -file is given).
func runRecv(ctx context.Context, cfg channel.Config, rng channel.Rand, wsAddr, file string) {
	tr, err := signaling.EstablishAsHost(ctx, wsAddr)
	if err != nil {
		util.LogError("failed to establish link: %v", err)
		os.Exit(1)
	}
	defer tr.Close()

	util.StartStatsReporter(ctx)
	util.LogSuccess("P2P link established — waiting for data")

	var sink arq.OutputSink
	var fs *fileSink
	if file != "" {
		fs, err = newFileSink(file)
		if err != nil {
			util.LogError("failed to open output file: %v", err)
			os.Exit(1)
		}
		sink = fs
	} else {
		sink = &arq.BufferSink{}
	}

	receiver := arq.NewReceiver(channel.NewEndpoint(ctx, channel.New(cfg, nil, rng), tr), sink, nil, arq.ReceiverConfig{})
	if err := receiver.Run(ctx); err != nil {
		util.LogError("receive failed: %v", err)
		os.Exit(1)
	}

	if fs != nil {
		util.LogSuccess("stream written to %s (%d bytes)", file, fs.written)
	}
	util.LogInfo("received=%d acked=%d corrupted=%d duplicates=%d",
		receiver.Metrics.Received, receiver.Metrics.Acked, receiver.Metrics.Corrupted, receiver.Metrics.Duplicates)
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// loadPayload reads the file at path, or generates size deterministic
// bytes when path is empty.
func loadPayload(path string, size int) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data, nil
}

// fileSink appends delivered bytes straight to a file.
type fileSink struct {
	f       *os.File
	written int
}

func newFileSink(path string) (*fileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &fileSink{f: f}, nil
}

func (s *fileSink) Append(p []byte) error {
	n, err := s.f.Write(p)
	s.written += n
	return err
}

func (s *fileSink) Finalize() error {
	return s.f.Close()
}

// printSummary logs the per-side counters of a finished local transfer.
func printSummary(sm arq.SenderMetrics, rm arq.ReceiverMetrics) {
	util.LogInfo("sender:   sent=%d accepted=%d retransmitted=%d timeouts=%d",
		sm.Sent, sm.Accepted, sm.Retransmitted, sm.Timeouts)
	util.LogInfo("receiver: received=%d acked=%d corrupted=%d duplicates=%d",
		rm.Received, rm.Acked, rm.Corrupted, rm.Duplicates)
}

// normalizeWSURL validates and normalizes a raw WebSocket URL string.
func normalizeWSURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if host, ok := strings.CutPrefix(raw, "ws://"); ok {
		return "ws://" + strings.TrimSuffix(host, "/ws") + "/ws", nil
	}
	if host, ok := strings.CutPrefix(raw, "wss://"); ok {
		return "wss://" + strings.TrimSuffix(host, "/ws") + "/ws", nil
	}
	if raw == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %q", raw)
	}
	// Bare host:port — assume plain ws.
	return "ws://" + strings.TrimSuffix(raw, "/ws") + "/ws", nil
}

// askURL prompts the user for a valid WebSocket URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Receiver WebSocket URL (e.g. ws://192.168.1.10:8137)").
			Show()

		wsURL, err := normalizeWSURL(raw)
		if err == nil {
			pterm.Println()
			return wsURL
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}

// askPort prompts the user for a port number until a valid one is entered.
func askPort(prompt string) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && port >= 1 && port <= 65535 {
			pterm.Println()
			return port
		}

		util.LogWarning("invalid port number: must be 1 ~ 65535")
		pterm.Println()
	}
}
