package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Device is an adapter, device and queue without a presentation surface.
type Device struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

// NewHeadlessDevice picks a high-performance adapter and opens a device on it.
func NewHeadlessDevice() (*Device, error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	return &Device{
		Instance: instance,
		Adapter:  adapter,
		Device:   device,
		Queue:    device.GetQueue(),
	}, nil
}

// WrapDevice reuses a device owned by someone else, such as a windowed app.
// Release on the result is a no-op.
func WrapDevice(device *wgpu.Device) *Device {
	return &Device{Device: device, Queue: device.GetQueue()}
}

func (d *Device) Release() {
	if d.Instance == nil {
		return
	}
	d.Queue.Release()
	d.Device.Release()
	d.Adapter.Release()
	d.Instance.Release()
	d.Instance = nil
}
