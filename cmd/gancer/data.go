package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// Sample is one paired training volume: the condition A and the target B,
// both [1, C, D, H, W], plus their source paths.
type Sample[B tensor.Backend] struct {
	A     *tensor.Tensor[float32, B]
	B     *tensor.Tensor[float32, B]
	APath string
	BPath string
}

// SyntheticDataset builds n paired volumes for smoke-testing the trainer
// without data on disk. A volumes are band-limited noise in [-1, 1]; the
// paired B volume is the intensity-inverted A, a translation a generator
// can actually learn.
func SyntheticDataset[B tensor.Backend](n, edge, inputNC, outputNC int, seed uint64, backend B) []Sample[B] {
	rng := rand.New(rand.NewPCG(seed, 0))
	samples := make([]Sample[B], 0, n)

	for i := 0; i < n; i++ {
		a := tensor.Zeros[float32](tensor.Shape{1, inputNC, edge, edge, edge}, backend)
		aData := a.Raw().AsFloat32()
		// Low-frequency pattern plus noise keeps the volumes from being
		// pure static.
		phase := rng.Float64() * 2 * math.Pi
		for idx := range aData {
			base := math.Sin(float64(idx)/float64(edge*edge)*2*math.Pi + phase)
			aData[idx] = float32(0.7*base + 0.3*(2*rng.Float64()-1))
		}

		b := tensor.Zeros[float32](tensor.Shape{1, outputNC, edge, edge, edge}, backend)
		bData := b.Raw().AsFloat32()
		for idx := range bData {
			bData[idx] = -aData[idx%len(aData)]
		}

		samples = append(samples, Sample[B]{
			A:     a,
			B:     b,
			APath: fmt.Sprintf("synthetic://A/%04d", i),
			BPath: fmt.Sprintf("synthetic://B/%04d", i),
		})
	}
	return samples
}

// LoadPairedVolumes reads paired raw float32 volumes from two directories.
// Files pair by name; each file holds nc*edge^3 little-endian float32
// voxels already normalized to [-1, 1].
func LoadPairedVolumes[B tensor.Backend](dirA, dirB string, edge, nc int, backend B) ([]Sample[B], error) {
	entries, err := os.ReadDir(dirA)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dirA, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	samples := make([]Sample[B], 0, len(names))
	for _, name := range names {
		aPath := filepath.Join(dirA, name)
		bPath := filepath.Join(dirB, name)

		a, err := loadVolume(aPath, edge, nc, backend)
		if err != nil {
			return nil, err
		}
		b, err := loadVolume(bPath, edge, nc, backend)
		if err != nil {
			return nil, err
		}
		samples = append(samples, Sample[B]{A: a, B: b, APath: aPath, BPath: bPath})
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("no volume files in %s", dirA)
	}
	return samples, nil
}

func loadVolume[B tensor.Backend](path string, edge, nc int, backend B) (*tensor.Tensor[float32, B], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read volume %s: %w", path, err)
	}

	want := nc * edge * edge * edge * 4
	if len(data) != want {
		return nil, fmt.Errorf("volume %s: %d bytes, want %d (%d channels, edge %d)",
			path, len(data), want, nc, edge)
	}

	t := tensor.Zeros[float32](tensor.Shape{1, nc, edge, edge, edge}, backend)
	voxels := t.Raw().AsFloat32()
	for i := range voxels {
		voxels[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return t, nil
}
