package server

import "github.com/thingset-go/thingset-go/pkg/transport/can"

// CANSink adapts a bound pkg/transport/can.Transport's differently
// named PublishReport method to the ReportSink interface, so the same
// Server/SubsetPublisher code targets either wire transport.
type CANSink struct {
	transport *can.Transport
}

// NewCANSink wraps transport for use as a ReportSink.
func NewCANSink(transport *can.Transport) *CANSink {
	return &CANSink{transport: transport}
}

// Publish delegates to the underlying Transport.
func (s *CANSink) Publish(raw []byte) error {
	return s.transport.PublishReport(raw)
}
