package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

func makeParam(t *testing.T, backend *cpu.CPUBackend, values []float32) *nn.Parameter[*cpu.CPUBackend] {
	t.Helper()
	tens, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	require.NoError(t, err)
	return nn.NewParameter("param", tens)
}

func makeGrad(t *testing.T, backend *cpu.CPUBackend, values []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(tensor.Shape{len(values)}, tensor.Float32, backend.Device())
	require.NoError(t, err)
	copy(raw.AsFloat32(), values)
	return raw
}

func TestSGD_Step(t *testing.T) {
	backend := cpu.New()
	param := makeParam(t, backend, []float32{1.0, 2.0})

	sgd := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{param}, SGDConfig{LR: 0.1}, backend)

	grads := map[*tensor.RawTensor]*tensor.RawTensor{
		param.Tensor().Raw(): makeGrad(t, backend, []float32{1.0, -2.0}),
	}
	sgd.Step(grads)

	data := param.Tensor().Data()
	assert.InDelta(t, 0.9, data[0], 1e-6)
	assert.InDelta(t, 2.2, data[1], 1e-6)
}

func TestSGD_Step_PublishesGrads(t *testing.T) {
	backend := cpu.New()
	param := makeParam(t, backend, []float32{1.0})

	sgd := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{param}, SGDConfig{LR: 0.1}, backend)
	require.Nil(t, param.Grad())

	grads := map[*tensor.RawTensor]*tensor.RawTensor{
		param.Tensor().Raw(): makeGrad(t, backend, []float32{3.0}),
	}
	sgd.Step(grads)

	require.NotNil(t, param.Grad())
	assert.InDelta(t, 3.0, param.Grad().Data()[0], 1e-6)

	sgd.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestSGD_Momentum(t *testing.T) {
	backend := cpu.New()
	param := makeParam(t, backend, []float32{1.0})

	sgd := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{param}, SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	grad := makeGrad(t, backend, []float32{1.0})
	grads := map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): grad}

	// Step 1: velocity = 1.0, param = 1.0 - 0.1*1.0 = 0.9
	sgd.Step(grads)
	assert.InDelta(t, 0.9, param.Tensor().Data()[0], 1e-6)

	// Step 2: velocity = 0.9*1.0 + 1.0 = 1.9, param = 0.9 - 0.19 = 0.71
	sgd.Step(grads)
	assert.InDelta(t, 0.71, param.Tensor().Data()[0], 1e-6)
}

func TestSGD_SkipsParamsWithoutGrad(t *testing.T) {
	backend := cpu.New()
	param := makeParam(t, backend, []float32{5.0})

	sgd := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{param}, SGDConfig{LR: 0.1}, backend)
	sgd.Step(map[*tensor.RawTensor]*tensor.RawTensor{})

	assert.InDelta(t, 5.0, param.Tensor().Data()[0], 1e-6)
}

func TestAdam_Step(t *testing.T) {
	backend := cpu.New()
	param := makeParam(t, backend, []float32{1.0})

	adam := NewAdam([]*nn.Parameter[*cpu.CPUBackend]{param}, AdamConfig{LR: 0.1}, backend)

	grads := map[*tensor.RawTensor]*tensor.RawTensor{
		param.Tensor().Raw(): makeGrad(t, backend, []float32{1.0}),
	}
	adam.Step(grads)

	// First step with bias correction moves the parameter by roughly lr.
	assert.InDelta(t, 0.9, param.Tensor().Data()[0], 1e-3)
	assert.Equal(t, 1, adam.GetTimestep())
}

func TestAdam_Defaults(t *testing.T) {
	backend := cpu.New()
	adam := NewAdam(nil, AdamConfig{}, backend)

	assert.InDelta(t, 0.001, adam.GetLR(), 1e-9)
}

func TestSetLR(t *testing.T) {
	backend := cpu.New()
	sgd := NewSGD[*cpu.CPUBackend](nil, SGDConfig{LR: 0.5}, backend)

	assert.InDelta(t, 0.5, sgd.GetLR(), 1e-9)
	sgd.SetLR(0.05)
	assert.InDelta(t, 0.05, sgd.GetLR(), 1e-9)
}
