package can

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestRequestResponseChannelRoundTrip(t *testing.T) {
	clientEP, serverEP := NewLoopbackIsoTPPair()
	defer clientEP.Close()
	defer serverEP.Close()

	handler := func(req []byte) []byte {
		resp := make([]byte, len(req))
		for i, b := range req {
			resp[i] = b + 1
		}
		return resp
	}

	rrc, err := NewRequestResponseChannel(serverEP, 0x15, handler)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rrc.Serve(ctx)

	if err := clientEP.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	buf := make([]byte, 64)
	respCh := make(chan []byte, 1)
	go func() {
		n, err := clientEP.Read(buf)
		if err != nil {
			t.Errorf("read response: %v", err)
			return
		}
		respCh <- append([]byte(nil), buf[:n]...)
	}()

	select {
	case resp := <-respCh:
		if !bytes.Equal(resp, []byte{2, 3, 4}) {
			t.Fatalf("unexpected response %v", resp)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for response")
	}
}
