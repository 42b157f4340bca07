// Package pli implements the external PLI/simulator bridge interface
// of C10: the operations a compliance test uses to push driven bits
// and expected monitor bits into a simulator (or a hardware adapter
// acting like one), independent of the transport the bridge actually
// uses (see SerialBridge for a concrete implementation).
package pli

import (
	"context"

	"cancompliance.dev/canbus"
	"cancompliance.dev/timing"
)

// Bridge is the interface a compliance test drives a simulator/PLI
// backend through (spec §6).
type Bridge interface {
	DriverStart(ctx context.Context) error
	DriverPushItem(ctx context.Context, val canbus.BitVal, cycles int, rate canbus.BitRate) error
	DriverFlush(ctx context.Context) error

	MonitorStart(ctx context.Context) error
	MonitorPushItem(ctx context.Context, val canbus.BitVal, cycles int, rate canbus.BitRate) error
	MonitorSetTrigger(ctx context.Context, bitIndex int) error
	MonitorSetInputDelay(ctx context.Context, cycles int) error

	SetWaitForMonitor(ctx context.Context, wait bool) error
	CheckResult(ctx context.Context) (bool, error)

	GetSeed(ctx context.Context) (int64, error)
	GetBitTimingElement(ctx context.Context, rate canbus.BitRate) (*timing.BitTiming, error)
	GetCfgDutClockPeriodNs(ctx context.Context) (int, error)

	EndTest(ctx context.Context) error
}
