package tensor

import (
	"fmt"
	"unsafe"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices. Only CPU ships with this module; the Backend
// interface leaves room for accelerator implementations.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation: a contiguous row-major
// buffer plus shape/stride/type metadata. Pointer identity matters: the
// autodiff tape and the graph tracer key dataflow on *RawTensor.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zero-initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	if r.dtype != Bool {
		panic(fmt.Sprintf("tensor dtype is %s, not bool", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*bool)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Clone creates a deep copy of the RawTensor.
//
// Deep semantics are deliberate: the pruner snapshots mask state across
// iterations and must not alias the live buffers.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}
