package tensor

// Backend defines the compute interface the training stack needs. The CPU
// implementation lives in internal/backend/cpu; the autodiff decorator in
// internal/autodiff wraps any Backend and records operations for
// backpropagation.
//
// Convolution kernels use single-int stride/padding applied to all three
// spatial axes, matching the 4/2/1 encoder-decoder blocks the volumetric
// networks are built from.
type Backend interface {
	// Element-wise binary operations (with broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Element-wise scalar operations.
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor

	// Volumetric convolution.
	// Input [N, Cin, D, H, W], kernel [Cout, Cin, KD, KH, KW].
	Conv3D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv3DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv3DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	// Volumetric transposed convolution.
	// Input [N, Cin, D, H, W], kernel [Cin, Cout, KD, KH, KW].
	ConvTranspose3D(input, kernel *RawTensor, stride, padding int) *RawTensor
	ConvTranspose3DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	ConvTranspose3DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor

	// Reductions (scalar result, shape {1}).
	Sum(x *RawTensor) *RawTensor
	Mean(x *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
