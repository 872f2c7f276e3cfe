package link

// Stats counts link activity since New.
type Stats struct {
	Transfers      uint64
	TransferErrors uint64

	DataSent    uint64
	Retransmits uint64
	AcksSent    uint64
	NacksSent   uint64
	StatusSent  uint64
	LogsSent    uint64

	AcksReceived  uint64
	NacksReceived uint64
	CRCErrors     uint64
	Duplicates    uint64
	Overflows     uint64

	MessagesSent     uint64
	MessagesReceived uint64

	// QueueResets counts watchdog resets of the whole link state
	QueueResets uint64

	// PacketSize is the transfer size in use, after any trim
	PacketSize int
}

// Stats returns a snapshot of the counters.
func (t *Transport) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.PacketSize = t.packetSize
	return s
}
