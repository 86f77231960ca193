package log

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

func TestZerologAdapterLogsFrameEvent(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(zerolog.DebugLevel)
	adapter := NewZerologAdapter(zl)

	canID := uint32(0x1234)
	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame: &FrameEvent{
			Size:  256,
			Data:  []byte{0x01, 0x02},
			CanID: &canID,
		},
	})

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if logEntry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v, want %q", logEntry["conn_id"], "conn-123")
	}
	if logEntry["layer"] != "TRANSPORT" {
		t.Errorf("layer: got %v, want %q", logEntry["layer"], "TRANSPORT")
	}
	if logEntry["frame_size"] != float64(256) {
		t.Errorf("frame_size: got %v, want %v", logEntry["frame_size"], 256)
	}
	if logEntry["can_id"] != float64(0x1234) {
		t.Errorf("can_id: got %v, want %v", logEntry["can_id"], 0x1234)
	}
}

func TestZerologAdapterLogsMessageEvent(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(zerolog.DebugLevel)
	adapter := NewZerologAdapter(zl)

	verb := wire.VerbGet
	adapter.Log(Event{
		ConnectionID: "conn-456",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Message: &MessageEvent{
			Type:     MessageTypeRequest,
			Verb:     &verb,
			Endpoint: "/dGroup/dValue",
		},
	})

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if logEntry["msg_type"] != "REQUEST" {
		t.Errorf("msg_type: got %v, want %q", logEntry["msg_type"], "REQUEST")
	}
	if logEntry["verb"] != "get" {
		t.Errorf("verb: got %v, want %q", logEntry["verb"], "get")
	}
}

func TestZerologAdapterInterfaceSatisfaction(t *testing.T) {
	var _ Logger = (*ZerologAdapter)(nil)
}
