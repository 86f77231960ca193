package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/engine"
	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/registry"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

type fakeRoundTripper struct {
	resp []byte
	err  error
	req  []byte
}

func (f *fakeRoundTripper) RoundTrip(_ context.Context, req []byte) ([]byte, error) {
	f.req = req
	return f.resp, f.err
}

// cborGetByID encodes the endpoint+payload portion of a GET request
// (no leading verb byte): a map/ID key followed by the null payload.
func cborGetByID(id uint16) []byte {
	enc := codec.NewBinaryEncoder()
	_ = enc.EncodeUint(uint64(id))
	_ = enc.EncodeNull()
	return enc.Bytes()
}

// forwardRequest builds a complete VerbForward binary request: verb
// byte, CBOR node-ID string, CBOR verb, then the residual
// endpoint+payload.
func forwardRequest(targetID string, verb wire.Verb, residual []byte) []byte {
	enc := codec.NewBinaryEncoder()
	_ = enc.EncodeString(targetID)
	_ = enc.EncodeUint(uint64(verb))
	return append(append([]byte{byte(wire.VerbForward)}, enc.Bytes()...), residual...)
}

func TestGatewayForwardsAndRelaysSuccess(t *testing.T) {
	respEnc := codec.NewBinaryEncoder()
	_ = respEnc.EncodeNull()
	_ = respEnc.EncodeInt(42)
	rt := &fakeRoundTripper{resp: append([]byte{byte(wire.StatusContent)}, respEnc.Bytes()...)}

	router := StaticRouter{"deadbeef12345678": rt}
	gw := New(router, 0)

	reg := registry.New()
	eng := engine.New(reg, node.RoleSetAll)
	eng.SetForwarder(gw.Forward)

	req := forwardRequest("deadbeef12345678", wire.VerbGet, cborGetByID(2))
	resp := eng.HandleBinary(req)

	require.Equal(t, byte(wire.StatusContent), resp[0])

	dec := codec.NewBinaryDecoder(resp[1:])
	require.NoError(t, dec.DecodeNull())
	v, err := dec.DecodeInt()
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	require.Equal(t, byte(wire.VerbGet), rt.req[0])
}

func TestGatewayReturnsNotAGatewayWhenUnset(t *testing.T) {
	reg := registry.New()
	eng := engine.New(reg, node.RoleSetAll)

	req := forwardRequest("deadbeef12345678", wire.VerbGet, cborGetByID(2))
	resp := eng.HandleBinary(req)
	require.Equal(t, byte(wire.StatusNotAGateway), resp[0])
}

func TestGatewayReturnsTimeoutForUnknownTarget(t *testing.T) {
	router := StaticRouter{}
	gw := New(router, 0)

	reg := registry.New()
	eng := engine.New(reg, node.RoleSetAll)
	eng.SetForwarder(gw.Forward)

	req := forwardRequest("deadbeef12345678", wire.VerbGet, cborGetByID(2))
	resp := eng.HandleBinary(req)
	require.Equal(t, byte(wire.StatusGatewayTimeout), resp[0])
}

func TestGatewayReturnsTimeoutOnRoundTripError(t *testing.T) {
	rt := &fakeRoundTripper{err: context.DeadlineExceeded}
	router := StaticRouter{"deadbeef12345678": rt}
	gw := New(router, 0)

	reg := registry.New()
	eng := engine.New(reg, node.RoleSetAll)
	eng.SetForwarder(gw.Forward)

	req := forwardRequest("deadbeef12345678", wire.VerbGet, cborGetByID(2))
	resp := eng.HandleBinary(req)
	require.Equal(t, byte(wire.StatusGatewayTimeout), resp[0])
}
