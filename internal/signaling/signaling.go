// Package signaling orchestrates the WebSocket-based SDP/ICE exchange that
// links two peers. Callers receive a ready-to-use Transport; all WebSocket
// details are internal. The WebSocket is only the rendezvous — once the
// DataChannel opens it is closed and every datagram travels peer-to-peer.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/swarq-dev/swarq/internal/transport"
	"github.com/swarq-dev/swarq/internal/util"
)

// EstablishAsHost executes the full host-side signaling flow:
//  1. Start a WS server on wsAddr
//  2. Wait for the peer to connect
//  3. Create a Transport
//  4. Perform SDP/ICE exchange (host sends the offer)
//  5. Wait for the DataChannel to be ready
//  6. Close the WS server and connection (resource cleanup)
//  7. Return the ready Transport
func EstablishAsHost(ctx context.Context, wsAddr string) (*transport.Transport, error) {
	// 1. Start WS server.
	srv := &server{connCh: make(chan *websocket.Conn, 1)}
	wsPort, err := srv.start(wsAddr)
	if err != nil {
		return nil, err
	}
	defer srv.close()

	util.LogInfo("signaling server listening on port %d, waiting for peer...", wsPort)

	// 2. Wait for peer WS connection.
	wsConn, err := srv.waitForPeer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for peer: %w", err)
	}
	defer wsConn.Close()
	util.LogInfo("peer connected")

	// 3–7. Shared exchange; the host opens with the offer.
	return establish(ctx, wsConn, true)
}

// EstablishAsPeer executes the dialing side of the signaling flow: connect
// to the host's WS server, answer its offer, and return the ready
// Transport.
func EstablishAsPeer(ctx context.Context, wsURL string) (*transport.Transport, error) {
	wsConn, err := connect(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	defer wsConn.Close()
	util.LogInfo("WS connected: %s", wsURL)

	return establish(ctx, wsConn, false)
}

// establish runs the SDP/ICE exchange over an open WebSocket and blocks
// until the DataChannel is ready or the exchange fails.
func establish(ctx context.Context, wsConn *websocket.Conn, sendOffer bool) (*transport.Transport, error) {
	tr, err := transport.NewTransport(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Transport: %w", err)
	}

	// Assemble sender and receiver.
	s := &sender{tr: tr, conn: wsConn}
	r := &receiver{tr: tr, conn: wsConn, sender: s}

	// Register ICE candidate callback — forward via sender.
	tr.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			data, _ := json.Marshal(c.ToJSON())
			// Error intentionally ignored: sendCandidate is best-effort.
			s.sendCandidate(string(data))
		}
	})

	// Start receiver loop (background goroutine).
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.watch() // Exits when wsConn is closed by our caller; no ctx needed.
	}()

	if sendOffer {
		if err := s.sendOffer(); err != nil {
			tr.Close()
			return nil, fmt.Errorf("failed to send offer: %w", err)
		}
	}

	// Wait for result.
	select {
	case <-tr.Ready():
		util.LogInfo("WebRTC DataChannel established, closing WS")
		return tr, nil

	case err := <-errCh:
		tr.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)

	case <-ctx.Done():
		tr.Close()
		return nil, ctx.Err()
	}
}
