package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/prune/internal/tensor"
)

// ScaledDotProductAttention computes attention using the scaled dot-product
// mechanism:
//
//	Attention(Q, K, V) = softmax(QK^T / sqrt(d_k)) * V
//
// Parameters:
//   - query: Query tensor [batch, heads, seq_q, head_dim]
//   - key: Key tensor [batch, heads, seq_k, head_dim]
//   - value: Value tensor [batch, heads, seq_k, head_dim]
//   - mask: Optional additive attention mask [batch, 1, seq_q, seq_k] or nil
//   - scale: Scaling factor (0 for auto-compute as 1/sqrt(head_dim))
//
// Returns:
//   - output: Attended values [batch, heads, seq_q, head_dim]
//   - weights: Attention weights [batch, heads, seq_q, seq_k]
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	scale float32,
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	if len(query.Shape()) != 4 || len(key.Shape()) != 4 || len(value.Shape()) != 4 {
		panic(fmt.Sprintf("ScaledDotProductAttention: expected 4D inputs, got %v, %v, %v",
			query.Shape(), key.Shape(), value.Shape()))
	}

	headDim := query.Shape()[3]
	if scale == 0 {
		scale = float32(1.0 / math.Sqrt(float64(headDim)))
	}

	// Q @ K^T with the last two dimensions of K swapped
	kT := key.Transpose(0, 1, 3, 2)
	scores := query.BatchMatMul(kT).MulScalar(scale)

	if mask != nil {
		scores = scores.Add(mask)
	}

	weights := scores.Softmax(-1)
	output := weights.BatchMatMul(value)

	return output, weights
}

// MultiHeadAttention implements the multi-head attention mechanism.
//
// Architecture:
//
//	MHA(Q, K, V) = Concat(head_1, ..., head_h) * W_O
//	head_i = SDPA(Q*W_Q_i, K*W_K_i, V*W_V_i)
//
// The four projections are plain Linear layers, exposed so callers can
// inspect or mask them per head.
type MultiHeadAttention[B tensor.Backend] struct {
	WQ       *Linear[B] // Query projection [embed_dim, embed_dim]
	WK       *Linear[B] // Key projection [embed_dim, embed_dim]
	WV       *Linear[B] // Value projection [embed_dim, embed_dim]
	WO       *Linear[B] // Output projection [embed_dim, embed_dim]
	NumHeads int
	HeadDim  int
	EmbedDim int
	backend  B
}

// NewMultiHeadAttention creates a new multi-head attention module.
//
// embedDim must be divisible by numHeads; the head dimension is
// embedDim / numHeads.
func NewMultiHeadAttention[B tensor.Backend](
	embedDim, numHeads int,
	backend B,
) *MultiHeadAttention[B] {
	if embedDim%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: embed_dim (%d) must be divisible by num_heads (%d)", embedDim, numHeads))
	}

	return &MultiHeadAttention[B]{
		WQ:       NewLinear[B](embedDim, embedDim, backend),
		WK:       NewLinear[B](embedDim, embedDim, backend),
		WV:       NewLinear[B](embedDim, embedDim, backend),
		WO:       NewLinear[B](embedDim, embedDim, backend),
		NumHeads: numHeads,
		HeadDim:  embedDim / numHeads,
		EmbedDim: embedDim,
		backend:  backend,
	}
}

// Forward computes multi-head attention.
//
// Args:
//   - query: Query tensor [batch, seq_q, embed_dim]
//   - key: Key tensor [batch, seq_k, embed_dim]
//   - value: Value tensor [batch, seq_k, embed_dim]
//   - mask: Optional additive attention mask [batch, 1, seq_q, seq_k] or nil
//
// Returns output with shape [batch, seq_q, embed_dim].
//
// For self-attention, pass the same tensor for query, key, and value.
func (m *MultiHeadAttention[B]) Forward(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	batch := query.Shape()[0]
	seqQ := query.Shape()[1]
	seqK := key.Shape()[1]

	q := m.projectAndReshape(query, m.WQ, batch, seqQ)
	k := m.projectAndReshape(key, m.WK, batch, seqK)
	v := m.projectAndReshape(value, m.WV, batch, seqK)

	// Split into heads: [batch, seq, embed] -> [batch, heads, seq, head_dim]
	q = q.Reshape(batch, seqQ, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)
	k = k.Reshape(batch, seqK, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)
	v = v.Reshape(batch, seqK, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)

	attnOut, _ := ScaledDotProductAttention(q, k, v, mask, 0)

	// Merge heads back: [batch, heads, seq_q, head_dim] -> [batch, seq_q, embed]
	attnOut = attnOut.Transpose(0, 2, 1, 3).Reshape(batch, seqQ, m.EmbedDim)

	attnOut2D := attnOut.Reshape(batch*seqQ, m.EmbedDim)
	output := m.WO.Forward(attnOut2D)
	return output.Reshape(batch, seqQ, m.EmbedDim)
}

// projectAndReshape reshapes 3D input to 2D, applies the projection, and
// reshapes back to 3D.
func (m *MultiHeadAttention[B]) projectAndReshape(
	input *tensor.Tensor[float32, B],
	linear *Linear[B],
	batch, seq int,
) *tensor.Tensor[float32, B] {
	input2D := input.Reshape(batch*seq, m.EmbedDim)
	output2D := linear.Forward(input2D)
	return output2D.Reshape(batch, seq, m.EmbedDim)
}

// Parameters returns all trainable parameters (WQ, WK, WV, WO weights and biases).
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 8)
	params = append(params, m.WQ.Parameters()...)
	params = append(params, m.WK.Parameters()...)
	params = append(params, m.WV.Parameters()...)
	params = append(params, m.WO.Parameters()...)
	return params
}
