package softgpu

import (
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

// DeviceBuilderOption is a functional option applied to a Device during construction via NewDevice.
type DeviceBuilderOption func(*Device)

// WithTrace enables recording of every executed command, fence signal and present into the device Trace.
//
// Returns:
//   - DeviceBuilderOption: a function that enables tracing on a Device
func WithTrace() DeviceBuilderOption {
	return func(d *Device) {
		d.trace = &Trace{}
	}
}

// WithDescriptorStrides overrides the handle increment used by CBV/SRV/UAV and sampler heaps.
// Useful to check that callers never assume a particular stride.
//
// Parameters:
//   - cbvSrvUav: the stride for CBV/SRV/UAV heaps
//   - sampler: the stride for sampler heaps
//
// Returns:
//   - DeviceBuilderOption: a function that applies the strides to a Device
func WithDescriptorStrides(cbvSrvUav, sampler uint32) DeviceBuilderOption {
	return func(d *Device) {
		d.store = gpu.NewDescriptorStore(map[gpu.DescriptorHeapType]uint32{
			gpu.HeapTypeCBVSRVUAV: cbvSrvUav,
			gpu.HeapTypeSampler:   sampler,
			gpu.HeapTypeRTV:       32,
			gpu.HeapTypeDSV:       32,
		})
	}
}
