package valuenet

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/dragunovdenis/checkerstrainer/internal/checkers"
)

// DenseNet is the reference ValueNet implementation: a single hidden
// layer feed-forward network with tanh activations, generalizing
// agents/common/neural_network.go's NeuralNetwork from
// sigmoid/[][]float64 to tanh/gonum.org/v1/gonum/mat, and adding the
// eligibility trace its plain Q-table agent never needed.
//
// Architecture is kept deliberately simple — a small dense network;
// DenseNet picks one hidden layer sized at construction time.
type DenseNet struct {
	inputSize, hiddenSize int

	w1 *mat.Dense // hiddenSize x inputSize
	b1 *mat.Dense // hiddenSize x 1
	w2 *mat.Dense // 1 x hiddenSize
	b2 *mat.Dense // 1 x 1

	zw1, zb1, zw2, zb2 *mat.Dense // eligibility trace, same shapes
}

// NewDense builds a DenseNet with random weights in [-1, 1], mirroring
// agents/common/neural_network.go's NewNeuralNetwork initialization.
func NewDense(inputSize, hiddenSize int) *DenseNet {
	n := &DenseNet{inputSize: inputSize, hiddenSize: hiddenSize}
	n.w1 = randDense(hiddenSize, inputSize)
	n.b1 = randDense(hiddenSize, 1)
	n.w2 = randDense(1, hiddenSize)
	n.b2 = randDense(1, 1)
	n.zw1 = mat.NewDense(hiddenSize, inputSize, nil)
	n.zb1 = mat.NewDense(hiddenSize, 1, nil)
	n.zw2 = mat.NewDense(1, hiddenSize, nil)
	n.zb2 = mat.NewDense(1, 1, nil)
	return n
}

func randDense(r, c int) *mat.Dense {
	d := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.Set(i, j, rand.Float64()*2-1)
		}
	}
	return d
}

func tanh(x float64) float64 { return math.Tanh(x) }

// forward returns the hidden-layer activations and the scalar output
// for the given feature vector.
func (n *DenseNet) forward(x []float64) (a1 *mat.Dense, out float64) {
	xv := mat.NewDense(n.inputSize, 1, append([]float64(nil), x...))

	z1 := mat.NewDense(n.hiddenSize, 1, nil)
	z1.Mul(n.w1, xv)
	z1.Add(z1, n.b1)

	a1 = mat.NewDense(n.hiddenSize, 1, nil)
	a1.Apply(func(i, j int, v float64) float64 { return tanh(v) }, z1)

	z2 := mat.NewDense(1, 1, nil)
	z2.Mul(n.w2, a1)
	z2.Add(z2, n.b2)

	out = tanh(z2.At(0, 0))
	return
}

// Eval implements ValueNet.
func (n *DenseNet) Eval(afterstate checkers.GameState) float64 {
	_, out := n.forward(Features(afterstate))
	return out
}

// EligibilityUpdate implements ValueNet: z ← λγ·z + ∇θ v(afterstate).
func (n *DenseNet) EligibilityUpdate(afterstate checkers.GameState, lambdaGamma float64) {
	x := Features(afterstate)
	a1, out := n.forward(x)

	dOut := 1 - out*out // d tanh(z2)/dz2

	// grad w2, b2
	gw2 := mat.NewDense(1, n.hiddenSize, nil)
	gw2.Scale(dOut, a1.T())
	gb2 := dOut

	// backprop into hidden layer
	delta1 := mat.NewDense(n.hiddenSize, 1, nil)
	delta1.Mul(n.w2.T(), mat.NewDense(1, 1, []float64{dOut}))
	delta1.Apply(func(i, j int, v float64) float64 {
		a := a1.At(i, 0)
		return v * (1 - a*a)
	}, delta1)

	xv := mat.NewDense(n.inputSize, 1, append([]float64(nil), x...))
	gw1 := mat.NewDense(n.hiddenSize, n.inputSize, nil)
	gw1.Mul(delta1, xv.T())

	n.zw1.Scale(lambdaGamma, n.zw1)
	n.zw1.Add(n.zw1, gw1)

	n.zb1.Scale(lambdaGamma, n.zb1)
	n.zb1.Add(n.zb1, delta1)

	n.zw2.Scale(lambdaGamma, n.zw2)
	n.zw2.Add(n.zw2, gw2)

	n.zb2.Set(0, 0, lambdaGamma*n.zb2.At(0, 0)+gb2)
}

// ResetTrace implements ValueNet.
func (n *DenseNet) ResetTrace() {
	n.zw1.Zero()
	n.zb1.Zero()
	n.zw2.Zero()
	n.zb2.Zero()
}

// ApplyTD implements ValueNet: θ ← θ + α·δ·z.
func (n *DenseNet) ApplyTD(delta, alpha float64) {
	step := delta * alpha

	scaledAdd(n.w1, n.zw1, step)
	scaledAdd(n.b1, n.zb1, step)
	scaledAdd(n.w2, n.zw2, step)
	scaledAdd(n.b2, n.zb2, step)
}

func scaledAdd(dst, z *mat.Dense, step float64) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)+step*z.At(i, j))
		}
	}
}

// Clone implements ValueNet: copies parameters, resets the trace.
func (n *DenseNet) Clone() ValueNet {
	c := &DenseNet{
		inputSize:  n.inputSize,
		hiddenSize: n.hiddenSize,
		w1:         mat.DenseCopyOf(n.w1),
		b1:         mat.DenseCopyOf(n.b1),
		w2:         mat.DenseCopyOf(n.w2),
		b2:         mat.DenseCopyOf(n.b2),
	}
	c.zw1 = mat.NewDense(n.hiddenSize, n.inputSize, nil)
	c.zb1 = mat.NewDense(n.hiddenSize, 1, nil)
	c.zw2 = mat.NewDense(1, n.hiddenSize, nil)
	c.zb2 = mat.NewDense(1, 1, nil)
	return c
}

// gobNet is the on-the-wire shape for DenseNet, paralleling the
// teacher's GobEncode/GobDecode pattern on NeuralNetwork (flatten to
// plain slices the gob codec already knows how to handle).
type gobNet struct {
	InputSize, HiddenSize int
	W1, B1, W2, B2        []float64
}

// GobEncode implements gob.GobEncoder, matching
// agents/common/neural_network.go's NeuralNetwork.GobEncode shape
// (flatten to a plain struct of slices).
func (n *DenseNet) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	g := gobNet{
		InputSize:  n.inputSize,
		HiddenSize: n.hiddenSize,
		W1:         append([]float64(nil), n.w1.RawMatrix().Data...),
		B1:         append([]float64(nil), n.b1.RawMatrix().Data...),
		W2:         append([]float64(nil), n.w2.RawMatrix().Data...),
		B2:         append([]float64(nil), n.b2.RawMatrix().Data...),
	}
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (n *DenseNet) GobDecode(data []byte) error {
	var g gobNet
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	n.inputSize = g.InputSize
	n.hiddenSize = g.HiddenSize
	n.w1 = mat.NewDense(g.HiddenSize, g.InputSize, g.W1)
	n.b1 = mat.NewDense(g.HiddenSize, 1, g.B1)
	n.w2 = mat.NewDense(1, g.HiddenSize, g.W2)
	n.b2 = mat.NewDense(1, 1, g.B2)
	n.zw1 = mat.NewDense(g.HiddenSize, g.InputSize, nil)
	n.zb1 = mat.NewDense(g.HiddenSize, 1, nil)
	n.zw2 = mat.NewDense(1, g.HiddenSize, nil)
	n.zb2 = mat.NewDense(1, 1, nil)
	return nil
}
