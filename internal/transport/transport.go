// Package transport provides a WebRTC DataChannel implementation of the
// datagram link: unordered, unreliable delivery between two peers, with
// signaling handled by the signaling package.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/swarq-dev/swarq/internal/link"
	"github.com/swarq-dev/swarq/internal/util"
)

// recvBufferSize is the inbound datagram buffer. Late datagrams beyond it
// are dropped, which the ARQ layer treats like any other loss.
const recvBufferSize = 64

// Transport wraps a single PeerConnection + DataChannel pair and exposes
// it as a link.Link. Its lifecycle is governed by the DataChannel state
// and the context passed at construction time; the PeerConnection state
// is recorded but does not drive open/close decisions.
type Transport struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	sender     *sender
	recv       chan []byte
	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
}

// Compile-time interface check.
var _ link.Link = (*Transport)(nil)

// NewTransport creates a Transport backed by a new PeerConnection and a
// pre-negotiated unreliable DataChannel. The caller performs signaling via
// the exposed methods (CreateOffer / CreateAnswer / …) and then uses the
// Link methods for data transfer.
func NewTransport(ctx context.Context) (*Transport, error) {
	pc, err := newPeerConnection()
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	tCtx, tCancel := context.WithCancel(ctx)

	t := &Transport{
		pc:         pc,
		dc:         dc,
		recv:       make(chan []byte, recvBufferSize),
		openSignal: make(chan struct{}),
		ctx:        tCtx,
		cancel:     tCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	// DC open gate.
	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(t.openSignal) })
	})

	// DC close → cancel transport context.
	dc.OnClose(func() {
		util.LogInfo("DataChannel closed")
		tCancel()
	})

	// Record PC state (informational only).
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		t.mu.Lock()
		t.pcState = state
		t.mu.Unlock()
	})

	// Inbound datagrams → recv channel. A full buffer drops the datagram;
	// the ARQ layer recovers exactly as it would from wire loss.
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		data := make([]byte, len(msg.Data))
		copy(data, msg.Data)
		select {
		case t.recv <- data:
		default:
			util.LogDebug("recv buffer full, dropping %d-byte datagram", len(data))
		}
	})

	// Start the single-writer sender goroutine.
	t.sender = newSender(tCtx, dc, t.openSignal)

	return t, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Ready returns a channel that is closed when the DataChannel is open and
// the Transport is ready to send and receive.
func (t *Transport) Ready() <-chan struct{} {
	return t.openSignal
}

// Done returns a channel that is closed when the Transport is shut down
// (DataChannel closed or parent context cancelled).
func (t *Transport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Close shuts down the DataChannel and PeerConnection.
func (t *Transport) Close() error {
	t.cancel()
	return errors.Join(t.dc.Close(), t.pc.Close())
}

// ConnectionState returns the last observed PeerConnection state.
func (t *Transport) ConnectionState() webrtc.PeerConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pcState
}

// ---------------------------------------------------------------------------
// Link
// ---------------------------------------------------------------------------

// Send enqueues one datagram for transmission. It blocks while the
// internal buffer is full and returns ErrClosed once the transport is
// shut down.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	return t.sender.send(ctx, data)
}

// Recv blocks until a datagram arrives, the transport shuts down, or ctx
// is cancelled.
func (t *Transport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-t.recv:
		return data, nil
	case <-t.ctx.Done():
		return nil, link.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (t *Transport) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	t.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}
