package optim

import (
	"math"

	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int
	m       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	v       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend B
}

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer with defaults filled in for
// unspecified hyperparameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		v:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend: backend,
	}
}

// Step performs a single optimization step using the Adam algorithm.
//
// Gradients are attached to their parameters before the update.
// Parameters with no gradient are skipped.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		gradTensor := tensor.New[float32, B](grad, a.backend)
		param.SetGrad(gradTensor)

		m, exists := a.m[param]
		if !exists {
			m = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.m[param] = m
		}

		v, exists := a.v[param]
		if !exists {
			v = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.v[param] = v
		}

		a.updateParameter(param, gradTensor, m, v, biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs the Adam update for a single parameter.
func (a *Adam[B]) updateParameter(
	param *nn.Parameter[B],
	grad *tensor.Tensor[float32, B],
	m, v *tensor.Tensor[float32, B],
	biasCorrection1, biasCorrection2 float32,
) {
	gradData := grad.Raw().AsFloat32()
	mData := m.Raw().AsFloat32()
	vData := v.Raw().AsFloat32()
	paramData := param.Tensor().Raw().AsFloat32()

	for i := range paramData {
		g := gradData[i]

		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}
