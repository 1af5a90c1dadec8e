// Package config defines the training/inference configuration surface and
// its YAML loading.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Direction identifiers for the paired-volume translation.
const (
	DirectionAtoB = "AtoB"
	DirectionBtoA = "BtoA"
)

// Options is the full configuration surface of a training or inference run.
//
// Zero-valued fields are filled by Default; Load starts from the defaults
// and overlays a YAML file.
type Options struct {
	// Model name; checkpoints live under CheckpointsDir/Name.
	Name           string `yaml:"name"`
	CheckpointsDir string `yaml:"checkpoints_dir"`

	// Network geometry.
	InputNC        int    `yaml:"input_nc"`
	OutputNC       int    `yaml:"output_nc"`
	NGF            int    `yaml:"ngf"`
	NDF            int    `yaml:"ndf"`
	WhichModelNetG string `yaml:"which_model_net_g"`
	WhichModelNetD string `yaml:"which_model_net_d"`
	NLayersD       int    `yaml:"n_layers_d"`
	Norm           string `yaml:"norm"`
	NoDropout      bool   `yaml:"no_dropout"`
	InitType       string `yaml:"init_type"`

	// Device ids; the CPU backend treats them as informational.
	GPUIDs []int `yaml:"gpu_ids"`

	// Lifecycle.
	IsTrain       bool   `yaml:"is_train"`
	ContinueTrain bool   `yaml:"continue_train"`
	WhichEpoch    string `yaml:"which_epoch"`

	// Adversarial game.
	PoolSize    int     `yaml:"pool_size"`
	NoLsgan     bool    `yaml:"no_lsgan"`
	Wasserstein bool    `yaml:"wasserstein"`
	ReconLoss   string  `yaml:"recon_loss"`
	LambdaA     float32 `yaml:"lambda_a"`

	// Optimization.
	LR           float32 `yaml:"lr"`
	Beta1        float32 `yaml:"beta1"`
	NIter        int     `yaml:"niter"`
	NIterDecay   int     `yaml:"niter_decay"`
	LRPolicy     string  `yaml:"lr_policy"`
	LRDecayIters int     `yaml:"lr_decay_iters"`

	// Data orientation and reporting.
	Direction string `yaml:"direction"`
	NoImg     bool   `yaml:"no_img"`

	// Seed for weight init, pool replay, and dropout reproducibility.
	Seed uint64 `yaml:"seed"`
}

// Default returns the options pix2pix-style training conventionally uses.
func Default() Options {
	return Options{
		Name:           "experiment",
		CheckpointsDir: "./checkpoints",
		InputNC:        1,
		OutputNC:       1,
		NGF:            64,
		NDF:            64,
		WhichModelNetG: "unet_32",
		WhichModelNetD: "basic",
		NLayersD:       3,
		Norm:           "instance",
		InitType:       "normal",
		IsTrain:        true,
		WhichEpoch:     "latest",
		PoolSize:       50,
		ReconLoss:      "l1",
		LambdaA:        100,
		LR:             0.0002,
		Beta1:          0.5,
		NIter:          100,
		NIterDecay:     100,
		LRPolicy:       "lambda",
		LRDecayIters:   50,
		Direction:      DirectionAtoB,
		Seed:           1,
	}
}

// Load reads a YAML options file over the defaults. Unknown keys are
// rejected so typos fail loudly instead of silently training with defaults.
func Load(path string) (Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return opts, fmt.Errorf("parse config %s: %w", path, err)
	}
	return opts, nil
}

// Validate rejects configurations the model cannot be built from. It runs
// before any network or optimizer state is constructed.
func (o *Options) Validate() error {
	if o.ReconLoss != "l1" && o.ReconLoss != "l2" {
		return fmt.Errorf("recon_loss %q is not a valid reconstruction loss", o.ReconLoss)
	}
	switch o.Norm {
	case "instance", "batch", "none":
	default:
		return fmt.Errorf("norm %q is not a valid normalization layer", o.Norm)
	}
	switch o.InitType {
	case "normal", "xavier", "kaiming", "orthogonal":
	default:
		return fmt.Errorf("init_type %q is not a valid initialization", o.InitType)
	}
	switch o.Direction {
	case DirectionAtoB, DirectionBtoA:
	default:
		return fmt.Errorf("direction %q must be %s or %s", o.Direction, DirectionAtoB, DirectionBtoA)
	}
	switch o.LRPolicy {
	case "lambda", "step":
	default:
		return fmt.Errorf("lr_policy %q is not implemented", o.LRPolicy)
	}
	if o.InputNC <= 0 || o.OutputNC <= 0 {
		return fmt.Errorf("channel counts must be positive, got input_nc=%d output_nc=%d", o.InputNC, o.OutputNC)
	}
	if o.PoolSize < 0 {
		return fmt.Errorf("pool_size must be non-negative, got %d", o.PoolSize)
	}
	if o.LambdaA < 0 {
		return fmt.Errorf("lambda_a must be non-negative, got %v", o.LambdaA)
	}
	return nil
}
