// Package pool implements the replay buffer that feeds the discriminator
// with a mix of current and historical generator outputs.
//
// Training the discriminator only on the newest fakes lets it chase the
// generator; replaying older fakes stabilizes the adversarial game (Shrivastava
// et al., 2017).
package pool

import (
	"fmt"
	"math/rand/v2"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// ImagePool stores up to size generated volumes and answers queries with a
// 50/50 mix of fresh and replayed samples.
//
// Stored and returned tensors are detached: gradients never flow through
// the pool, so replayed volumes cannot reach the generator's tape history.
type ImagePool[B tensor.Backend] struct {
	size   int
	images []*tensor.Tensor[float32, B]
	rng    *rand.Rand
}

// New creates a pool holding up to size volumes. A size of zero disables
// replay; Query then returns its input unchanged.
//
// rng drives the keep-or-swap decisions; pass a seeded source for
// reproducible training runs, or nil for an arbitrary seed.
func New[B tensor.Backend](size int, rng *rand.Rand) *ImagePool[B] {
	if size < 0 {
		panic(fmt.Sprintf("pool: negative size %d", size))
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &ImagePool[B]{size: size, rng: rng}
}

// Len returns the number of stored volumes.
func (p *ImagePool[B]) Len() int {
	return len(p.images)
}

// Query runs the replay protocol over a batch [N, C, D, H, W] and returns a
// batch of the same shape.
//
// Per sample:
//   - while the pool is not full, store a detached copy and return the sample;
//   - once full, with probability 1/2 swap the sample against a random
//     stored one and return the evicted volume, otherwise return the sample.
func (p *ImagePool[B]) Query(images *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if p.size == 0 {
		return images
	}
	shape := images.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("pool: expected 5D batch [N,C,D,H,W], got %v", shape))
	}

	batch := shape[0]
	returned := make([]*tensor.Tensor[float32, B], 0, batch)
	for i := 0; i < batch; i++ {
		image := sample(images, i)
		switch {
		case len(p.images) < p.size:
			p.images = append(p.images, image.DeepCopy().Detach())
			returned = append(returned, image)
		case p.rng.Float64() > 0.5:
			idx := p.rng.IntN(len(p.images))
			evicted := p.images[idx]
			p.images[idx] = image.DeepCopy().Detach()
			returned = append(returned, evicted)
		default:
			returned = append(returned, image)
		}
	}

	return assemble(returned, images)
}

// sample extracts sample i of a batch as a [1, C, D, H, W] tensor. Samples
// are contiguous along the outermost dimension, so this is a byte copy.
func sample[B tensor.Backend](images *tensor.Tensor[float32, B], i int) *tensor.Tensor[float32, B] {
	shape := images.Shape()
	sampleShape := tensor.Shape{1, shape[1], shape[2], shape[3], shape[4]}

	raw, err := tensor.NewRaw(sampleShape, images.DType(), images.Device())
	if err != nil {
		panic(fmt.Sprintf("pool: %v", err))
	}
	stride := raw.ByteSize()
	copy(raw.Data(), images.Raw().Data()[i*stride:(i+1)*stride])
	return tensor.New[float32, B](raw, images.Backend())
}

// assemble concatenates per-sample volumes back into one batch without
// touching the tape; pool output is a gradient boundary regardless of
// recording state.
func assemble[B tensor.Backend](samples []*tensor.Tensor[float32, B], like *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	raw, err := tensor.NewRaw(like.Shape(), like.DType(), like.Device())
	if err != nil {
		panic(fmt.Sprintf("pool: %v", err))
	}
	out := raw.Data()
	offset := 0
	for _, s := range samples {
		n := copy(out[offset:], s.Raw().Data())
		offset += n
	}
	return tensor.New[float32, B](raw, like.Backend())
}
