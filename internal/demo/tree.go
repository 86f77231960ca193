// Package demo builds the sample node tree the thingset-server,
// thingset-can-node, and thingset-inspect commands register against,
// standing in for the device-specific object model a real firmware
// image would define. Node IDs are hand-assigned the way a generated
// usecase header would hand them out (sequential, root group first).
package demo

import (
	"fmt"
	"time"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/registry"
)

const (
	IDDeviceGroup    uint16 = 0x100
	IDSerialNumber   uint16 = 0x101
	IDFirmwareVer    uint16 = 0x102
	IDMeasGroup      uint16 = 0x110
	IDUptime         uint16 = 0x111
	IDTemperature    uint16 = 0x112
	IDControlGroup   uint16 = 0x120
	IDSetpoint       uint16 = 0x121
	IDEnabled        uint16 = 0x122
	IDReboot         uint16 = 0x130
)

// Tree bundles the mutable properties a running demo wants to update
// from a simulation loop alongside the registry they live in.
type Tree struct {
	Reg         *registry.Registry
	Uptime      *node.Property[int32]
	Temperature *node.Property[float32]
	Setpoint    *node.Property[float32]
	Enabled     *node.Property[bool]
}

// Build registers a representative device tree: identity properties
// under the Device group, a live measurement group, a persisted+live
// control group, and an xReboot function.
func Build(reg *registry.Registry) (*Tree, error) {
	deviceGrp := node.NewGroup(IDDeviceGroup, 0, "Device")
	serial := node.NewProperty[string](IDSerialNumber, IDDeviceGroup, "dSerialNumber", node.AccessAnyRead, node.SubsetPersisted, "TS-0001")
	fw := node.NewProperty[string](IDFirmwareVer, IDDeviceGroup, "dFirmwareVersion", node.AccessAnyRead, 0, "0.1.0")

	measGrp := node.NewGroup(IDMeasGroup, 0, "Measurements")
	uptime := node.NewProperty[int32](IDUptime, IDMeasGroup, "dUptime", node.AccessAnyRead, node.SubsetLive, 0)
	temperature := node.NewProperty[float32](IDTemperature, IDMeasGroup, "dTemperature", node.AccessAnyRead, node.SubsetLive, 21.0)

	controlGrp := node.NewGroup(IDControlGroup, 0, "Control")
	setpoint := node.NewProperty[float32](IDSetpoint, IDControlGroup, "dSetpoint", node.AccessAnyReadWrite, node.SubsetPersisted|node.SubsetLive, 20.0)
	enabled := node.NewProperty[bool](IDEnabled, IDControlGroup, "dEnabled", node.AccessAnyReadWrite, node.SubsetPersisted, true)

	reboot := node.NewFunction(IDReboot, IDControlGroup, "xReboot", node.AccessExpertReadWrite, func(_ codec.Decoder, _ codec.Encoder) error {
		uptime.Set(0)
		return nil
	})

	nodes := []node.Node{deviceGrp, serial, fw, measGrp, uptime, temperature, controlGrp, setpoint, enabled, reboot}
	for _, n := range nodes {
		if err := reg.Register(n); err != nil {
			return nil, fmt.Errorf("demo: register %s: %w", n.Name(), err)
		}
	}

	return &Tree{
		Reg:         reg,
		Uptime:      uptime,
		Temperature: temperature,
		Setpoint:    setpoint,
		Enabled:     enabled,
	}, nil
}

// Simulate advances Uptime and Temperature once per tick, standing in
// for a device's sensor polling loop.
func (t *Tree) Simulate(start time.Time) {
	t.Uptime.Set(int32(time.Since(start).Seconds()))
	drift := float32(0.1)
	if t.Uptime.Get()%2 == 0 {
		drift = -0.1
	}
	t.Temperature.Set(t.Temperature.Get() + drift)
}
