package demo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/registry"
)

func TestBuildRegistersExpectedNodes(t *testing.T) {
	reg := registry.New()
	tree, err := Build(reg)
	require.NoError(t, err)

	n, ok := reg.FindByID(IDSetpoint)
	require.True(t, ok)
	require.Equal(t, "dSetpoint", n.Name())
	require.Equal(t, float32(20.0), tree.Setpoint.Get())
}

func TestSimulateAdvancesUptimeAndTemperature(t *testing.T) {
	reg := registry.New()
	tree, err := Build(reg)
	require.NoError(t, err)

	before := tree.Temperature.Get()
	tree.Simulate(time.Now().Add(-2 * time.Second))
	require.GreaterOrEqual(t, tree.Uptime.Get(), int32(1))
	require.NotEqual(t, before, tree.Temperature.Get())
}

func TestRebootFunctionResetsUptime(t *testing.T) {
	reg := registry.New()
	tree, err := Build(reg)
	require.NoError(t, err)
	tree.Uptime.Set(42)

	n, ok := reg.FindByID(IDReboot)
	require.True(t, ok)
	invoker, ok := n.Invocable()
	require.True(t, ok)
	require.NoError(t, invoker.Invoke(nil, nil))
	require.Equal(t, int32(0), tree.Uptime.Get())
}
