package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// Weight initialization schemes for DefineG/DefineD.
const (
	InitNormal     = "normal"
	InitXavier     = "xavier"
	InitKaiming    = "kaiming"
	InitOrthogonal = "orthogonal"
)

// InitWeights re-initializes every convolution kernel of a module tree
// according to the named scheme. Biases and norm affine parameters keep
// their construction-time values (zeros and ones respectively).
//
// gain scales the drawn weights; 0.02 matches the usual GAN setting.
func InitWeights[B tensor.Backend](m Module[B], initType string, gain float64, seed uint64) error {
	src := rand.NewPCG(seed, 0)
	for _, p := range m.Parameters() {
		raw := p.Tensor().Raw()
		if len(raw.Shape()) < 2 {
			continue // bias or norm affine
		}
		if err := initKernel(raw, initType, gain, src); err != nil {
			return fmt.Errorf("init %q: %w", p.Name(), err)
		}
	}
	return nil
}

func initKernel(raw *tensor.RawTensor, initType string, gain float64, src rand.Source) error {
	shape := raw.Shape()
	fanIn, fanOut := fans(shape)
	data := raw.AsFloat32()

	switch initType {
	case InitNormal:
		dist := distuv.Normal{Mu: 0, Sigma: gain, Src: src}
		for i := range data {
			data[i] = float32(dist.Rand())
		}
	case InitXavier:
		// Glorot normal with std = gain * sqrt(2 / (fan_in + fan_out)).
		dist := distuv.Normal{Mu: 0, Sigma: gain * math.Sqrt(2.0/float64(fanIn+fanOut)), Src: src}
		for i := range data {
			data[i] = float32(dist.Rand())
		}
	case InitKaiming:
		// He normal for leaky-ReLU nets: std = sqrt(2 / fan_in).
		dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(2.0 / float64(fanIn)), Src: src}
		for i := range data {
			data[i] = float32(dist.Rand())
		}
	case InitOrthogonal:
		orthogonal(data, shape[0], raw.NumElements()/shape[0], gain, src)
	default:
		return fmt.Errorf("unknown initialization %q", initType)
	}
	return nil
}

// fans computes fan_in and fan_out for a kernel tensor. For volumetric
// kernels [Cout, Cin, KD, KH, KW] the receptive field multiplies both.
func fans(shape tensor.Shape) (fanIn, fanOut int) {
	receptive := 1
	for _, s := range shape[2:] {
		receptive *= s
	}
	return shape[1] * receptive, shape[0] * receptive
}

// orthogonal fills data (viewed as a rows×cols matrix) with a gain-scaled
// orthogonal matrix obtained from the QR decomposition of a Gaussian draw.
func orthogonal(data []float32, rows, cols int, gain float64, src rand.Source) {
	n, m := rows, cols
	transposed := false
	if n < m {
		n, m = m, n
		transposed = true
	}

	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	a := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			a.Set(i, j, dist.Rand())
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	// Sign correction keeps the distribution uniform over the orthogonal
	// group rather than biased by the QR convention.
	for j := 0; j < m; j++ {
		if r.At(j, j) < 0 {
			for i := 0; i < n; i++ {
				q.Set(i, j, -q.At(i, j))
			}
		}
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := q.At(i, j)
			if transposed {
				v = q.At(j, i)
			}
			data[i*cols+j] = float32(gain * v)
		}
	}
}

// Zeros creates a zero-filled float32 tensor. Used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a ones-filled float32 tensor. Used for norm scale parameters.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
