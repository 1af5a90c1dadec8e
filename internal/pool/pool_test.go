package pool_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gancer-ml/gancer/internal/autodiff"
	"github.com/gancer-ml/gancer/internal/backend/cpu"
	"github.com/gancer-ml/gancer/internal/pool"
	"github.com/gancer-ml/gancer/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func volume(backend adBackend, fill float32) *tensor.Tensor[float32, adBackend] {
	t := tensor.Zeros[float32](tensor.Shape{1, 1, 2, 2, 2}, backend)
	data := t.Data()
	for i := range data {
		data[i] = fill
	}
	return t
}

func seededRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestPoolSizeZeroPassthrough(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := pool.New[adBackend](0, seededRNG(1))

	v := volume(backend, 7)
	if got := p.Query(v); got != v {
		t.Error("size-0 pool must return its input unchanged")
	}
	if p.Len() != 0 {
		t.Errorf("size-0 pool stored %d volumes", p.Len())
	}
}

func TestPoolFillsBeforeReplaying(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := pool.New[adBackend](3, seededRNG(2))

	// While below capacity every query returns its own input values.
	for i := 1; i <= 3; i++ {
		v := volume(backend, float32(i))
		out := p.Query(v)
		if out.Data()[0] != float32(i) {
			t.Errorf("query %d returned %v while filling, want %v", i, out.Data()[0], float32(i))
		}
		if p.Len() != i {
			t.Errorf("pool length = %d after %d queries", p.Len(), i)
		}
	}

	// At capacity the length never grows.
	for i := 4; i < 20; i++ {
		p.Query(volume(backend, float32(i)))
		if p.Len() != 3 {
			t.Fatalf("pool length = %d, want fixed 3", p.Len())
		}
	}
}

func TestPoolReplayMixesRoughlyHalf(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := pool.New[adBackend](10, seededRNG(3))

	for i := 0; i < 10; i++ {
		p.Query(volume(backend, -1))
	}

	// Every post-fill query carries a unique positive fill value; a returned
	// volume not matching the input means replay.
	const trials = 2000
	replayed := 0
	for i := 0; i < trials; i++ {
		fill := float32(i + 1)
		out := p.Query(volume(backend, fill))
		if out.Data()[0] != fill {
			replayed++
		}
	}

	rate := float64(replayed) / trials
	if math.Abs(rate-0.5) > 0.05 {
		t.Errorf("replay rate = %v, want ~0.5", rate)
	}
}

func TestPoolStoresDetachedCopies(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := pool.New[adBackend](1, seededRNG(4))

	v := volume(backend, 5)
	p.Query(v)

	// Mutating the source after the query must not reach the stored copy:
	// the pool deep-copies, so replayed history is immutable.
	for i := range v.Data() {
		v.Data()[i] = -99
	}

	// Force an eviction and check the replayed values.
	for i := 0; i < 100; i++ {
		out := p.Query(volume(backend, 1))
		if out.Data()[0] == 5 {
			return // got the stored volume back, unmutated
		}
		if out.Data()[0] == -99 {
			t.Fatal("pool aliased the query input")
		}
	}
	t.Fatal("eviction never returned the stored volume")
}

func TestPoolQueryOffTheTape(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	p := pool.New[adBackend](2, seededRNG(5))

	tape.StartRecording()
	defer tape.StopRecording()

	before := tape.NumOps()
	p.Query(volume(backend, 1))
	p.Query(volume(backend, 2))
	p.Query(volume(backend, 3))
	if tape.NumOps() != before {
		t.Errorf("pool recorded %d operations; replay must stay off the tape", tape.NumOps()-before)
	}
}

func TestPoolBatchedQuery(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := pool.New[adBackend](4, seededRNG(6))

	batch := tensor.Zeros[float32](tensor.Shape{2, 1, 2, 2, 2}, backend)
	data := batch.Data()
	for i := 0; i < 8; i++ {
		data[i] = 1
		data[8+i] = 2
	}

	out := p.Query(batch)
	if !out.Shape().Equal(batch.Shape()) {
		t.Fatalf("output shape = %v, want %v", out.Shape(), batch.Shape())
	}
	// Below capacity both samples pass through and both are stored.
	if out.Data()[0] != 1 || out.Data()[8] != 2 {
		t.Error("batched passthrough returned wrong samples")
	}
	if p.Len() != 2 {
		t.Errorf("pool stored %d samples from a batch of 2", p.Len())
	}
}

func TestPoolNegativeSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("negative pool size must panic")
		}
	}()
	pool.New[adBackend](-1, seededRNG(7))
}
