// Command gancer trains or runs a conditional volumetric GAN.
//
// Training:
//
//	gancer -config train.yaml -data-a ./volumes/a -data-b ./volumes/b
//
// Inference (is_train: false in the config) runs the generator over the
// dataset and reports per-volume reconstruction stats instead of training.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/gancer-ml/gancer/internal/autodiff"
	"github.com/gancer-ml/gancer/internal/backend/cpu"
	"github.com/gancer-ml/gancer/internal/config"
	"github.com/gancer-ml/gancer/internal/tensor"
	"github.com/gancer-ml/gancer/internal/vox2vox"
)

func main() {
	configPath := flag.String("config", "", "YAML options file (defaults used when empty)")
	dataA := flag.String("data-a", "", "Directory of domain-A raw float32 volumes")
	dataB := flag.String("data-b", "", "Directory of domain-B raw float32 volumes")
	edge := flag.Int("edge", 32, "Volume edge length (cubic volumes)")
	synthetic := flag.Int("synthetic", 0, "Use N synthetic paired volumes instead of files")
	printFreq := flag.Int("print-freq", 10, "Print losses every N iterations")
	saveFreq := flag.Int("save-freq", 5, "Save checkpoints every N epochs")
	flag.Parse()

	opts := config.Default()
	if *configPath != "" {
		var err error
		opts, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	backend := autodiff.New(cpu.New())

	model, err := vox2vox.NewModel(opts, backend)
	if err != nil {
		log.Fatalf("model: %v", err)
	}
	fmt.Printf("---------- %s initialized ----------\n", model.Name())
	fmt.Printf("   generator:     %s (ngf=%d, norm=%s, init=%s)\n",
		opts.WhichModelNetG, opts.NGF, opts.Norm, opts.InitType)
	if opts.IsTrain {
		fmt.Printf("   discriminator: %s (ndf=%d, n_layers=%d)\n",
			opts.WhichModelNetD, opts.NDF, opts.NLayersD)
		fmt.Printf("   losses:        gan(wasserstein=%v, lsgan=%v) + %s*%.0f, pool=%d\n",
			opts.Wasserstein, !opts.NoLsgan, opts.ReconLoss, opts.LambdaA, opts.PoolSize)
	}

	samples := loadDataset(opts, backend, *dataA, *dataB, *edge, *synthetic)
	fmt.Printf("   dataset:       %d paired volumes\n", len(samples))

	if opts.IsTrain {
		train(model, samples, opts, *printFreq, *saveFreq)
	} else {
		infer(model, samples)
	}
}

func loadDataset(
	opts config.Options,
	backend *autodiff.AutodiffBackend[*cpu.CPUBackend],
	dataA, dataB string,
	edge, synthetic int,
) []Sample[*autodiff.AutodiffBackend[*cpu.CPUBackend]] {
	if synthetic > 0 {
		return SyntheticDataset(synthetic, edge, opts.InputNC, opts.OutputNC, opts.Seed, backend)
	}
	if dataA == "" || dataB == "" {
		log.Fatal("need -data-a and -data-b, or -synthetic N")
	}
	samples, err := LoadPairedVolumes(dataA, dataB, edge, opts.InputNC, backend)
	if err != nil {
		log.Fatalf("dataset: %v", err)
	}
	return samples
}

func train[B autodiff.BackwardCapable](
	model *vox2vox.Model[B],
	samples []Sample[B],
	opts config.Options,
	printFreq, saveFreq int,
) {
	totalEpochs := opts.NIter + opts.NIterDecay
	fmt.Printf("---------- training for %d epochs ----------\n", totalEpochs)

	iteration := 0
	for epoch := 1; epoch <= totalEpochs; epoch++ {
		for _, s := range samples {
			model.SetInput(vox2vox.Input[B]{
				A: s.A, B: s.B,
				APaths: []string{s.APath},
				BPaths: []string{s.BPath},
			})
			result := model.OptimizeParameters()

			iteration++
			if printFreq > 0 && iteration%printFreq == 0 {
				fmt.Printf("epoch %3d iter %6d  G_GAN=%.4f G_L1=%.4f D_real=%.4f D_fake=%.4f\n",
					epoch, iteration, result.GGAN, result.GL1, result.DReal, result.DFake)
			}
		}

		if saveFreq > 0 && epoch%saveFreq == 0 {
			if err := model.Save(fmt.Sprintf("%d", epoch)); err != nil {
				log.Fatalf("save: %v", err)
			}
			if err := model.Save("latest"); err != nil {
				log.Fatalf("save: %v", err)
			}
			fmt.Printf("saved checkpoint at epoch %d\n", epoch)
		}

		lr := model.UpdateLearningRate()
		fmt.Printf("epoch %3d done, learning rate -> %.6f\n", epoch, lr)
	}

	if err := model.Save("latest"); err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Println("---------- training complete ----------")
}

func infer[B autodiff.BackwardCapable](model *vox2vox.Model[B], samples []Sample[B]) {
	fmt.Println("---------- inference ----------")
	for _, s := range samples {
		model.SetInput(vox2vox.Input[B]{
			A: s.A, B: s.B,
			APaths: []string{s.APath},
			BPaths: []string{s.BPath},
		})
		model.Test()

		visuals := model.CurrentVisuals()
		var fake *tensor.RawTensor
		for _, v := range visuals {
			if v.Name == "fake_B" {
				fake = v.Voxels
			}
		}
		fmt.Printf("%s -> fake_B %v\n", model.GetImagePaths()[0], fake.Shape())
	}
}
