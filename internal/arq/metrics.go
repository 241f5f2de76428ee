package arq

// SenderMetrics are the cumulative counters for one sender's transfer.
// They are owned by the Sender and read by the caller after Run returns;
// nothing in the protocol feeds them back into decisions.
type SenderMetrics struct {
	Sent          int // data packet transmission attempts, retransmits included
	Accepted      int // chunks confirmed by a matching valid ack
	Retransmitted int // retransmission attempts
	Timeouts      int // ack waits that expired
}

// ReceiverMetrics are the cumulative counters for one receiver's transfer.
type ReceiverMetrics struct {
	Received   int // well-formed packets handed to the state machine
	Acked      int // acknowledgments sent, NAK repetitions included
	Corrupted  int // packets rejected by checksum verification
	Duplicates int // packets carrying the unexpected sequence number
}
