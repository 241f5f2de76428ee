package signaling

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/swarq-dev/swarq/internal/transport"
)

// sender is the outbound half of the exchange: it serializes signaling
// messages onto the WebSocket. The mutex exists because the ICE candidate
// callback fires from pion's goroutines while the receiver loop may be
// answering an offer.
type sender struct {
	tr   *transport.Transport
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *sender) send(msg message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

// sendOffer opens the exchange from the offering side.
func (s *sender) sendOffer() error {
	offer, err := s.tr.CreateOffer()
	if err != nil {
		return err
	}
	return s.sendDescription(msgTypeOffer, offer)
}

// sendAnswer responds to a received offer.
func (s *sender) sendAnswer() error {
	answer, err := s.tr.CreateAnswer()
	if err != nil {
		return err
	}
	return s.sendDescription(msgTypeAnswer, answer)
}

// sendDescription installs sdp as the local description and ships it to
// the peer. Setting it locally first is what starts ICE gathering.
func (s *sender) sendDescription(mt messageType, sdp webrtc.SessionDescription) error {
	if err := s.tr.SetLocalDescription(sdp); err != nil {
		return err
	}
	return s.send(message{Type: mt, SDP: sdp.SDP})
}

// sendCandidate forwards one gathered ICE candidate, pre-encoded as JSON.
func (s *sender) sendCandidate(candidate string) error {
	return s.send(message{Type: msgTypeCandidate, Candidate: candidate})
}
