// Command tilemlp fits a per-pixel coordinate MLP to an image with tile kernels
// and checks the kernels' forward values and gradients against a dense reference.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/asset"
	"github.com/born-ml/tilegrad/internal/autodiff"
	"github.com/born-ml/tilegrad/internal/kernel"
	"github.com/born-ml/tilegrad/internal/nn"
	"github.com/born-ml/tilegrad/internal/optim"
	"github.com/born-ml/tilegrad/internal/parallel"
)

var (
	flagScenario   = flag.String("scenario", "mlp", `Scenario to run: "mlp" fits the image, "single" runs one tiled layer`)
	flagImage      = flag.String("image", "", "Reference image; a synthetic pattern is used if empty")
	flagWidth      = flag.Int("width", 64, "Image width the reference is resized to")
	flagHeight     = flag.Int("height", 64, "Image height the reference is resized to")
	flagRefDType   = flag.String("reference-dtype", "float32", "Storage type of the reference image: float32, float64 or float16")
	flagIters      = flag.Int("iters", 1, "Training iterations")
	flagTrain      = flag.Bool("train", false, "Update the parameters with Adam after each backward pass")
	flagLR         = flag.Float64("lr", 0.001, "Adam learning rate")
	flagSeed       = flag.Int64("seed", 45, "Parameter initialization seed")
	flagBlockWidth = flag.Int("block-width", 32, "Threads per block")
	flagWorkers    = flag.Int("workers", 0, "Blocks executed concurrently; 0 uses every CPU")
	flagCheck      = flag.Bool("check", true, "Compare outputs and gradients with the dense reference")
	flagOut        = flag.String("out", "tilemlp.png", "Prediction image written after the last iteration; empty to skip")
	flagOracleOut  = flag.String("oracle-out", "", "Prediction image of the dense reference; empty to skip")
	flagSave       = flag.String("save", "", "Write a parameter checkpoint to this path")
	flagLoad       = flag.String("load", "", "Restore parameters from this checkpoint before training")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := nn.DefaultConfig()
	cfg.Width, cfg.Height = *flagWidth, *flagHeight
	cfg.BlockWidth = *flagBlockWidth
	cfg.Seed = *flagSeed
	cfg.LR = float32(*flagLR)
	if err := cfg.Validate(); err != nil {
		klog.Exitf("invalid configuration: %+v", err)
	}

	var opts []kernel.Option
	if *flagWorkers > 0 {
		par := parallel.DefaultConfig()
		par.Enabled, par.NumWorkers = true, *flagWorkers
		opts = append(opts, kernel.WithParallel(par))
	}

	var err error
	switch *flagScenario {
	case "mlp":
		err = runMLP(ctx, cfg, opts)
	case "single":
		err = runSingle(ctx, cfg, opts)
	default:
		klog.Exitf("unknown scenario %q", *flagScenario)
	}
	if err != nil {
		klog.Exitf("%s: %+v", *flagScenario, err)
	}
}

func runMLP(ctx context.Context, cfg nn.Config, opts []kernel.Option) error {
	refDType, ok := array.ParseDataType(*flagRefDType)
	if !ok {
		klog.Exitf("unknown reference dtype %q", *flagRefDType)
	}
	var ref *array.Array
	if *flagImage == "" {
		ref = must.M1(asset.Synthetic(cfg.Width, cfg.Height, refDType))
	} else {
		ref = must.M1(asset.LoadReference(*flagImage, cfg.Width, cfg.Height, refDType))
	}

	model := must.M1(nn.NewMLP(cfg))
	if *flagLoad != "" {
		c := must.M1(nn.LoadCheckpoint(*flagLoad, model))
		fmt.Printf("Restored %s (step %d, loss %.6g)\n", *flagLoad, c.Step, c.Loss)
	}
	buffers := must.M1(model.NewBuffers(ref))

	var optimizer optim.Optimizer
	if *flagTrain {
		params := must.M1(nn.OptimParams(model.Parameters()))
		optimizer = optim.NewAdam(params, optim.AdamConfig{LR: cfg.LR})
	}
	trainer := nn.NewTrainer(model, buffers, optimizer, opts...)

	numParams := 0
	for _, p := range model.Parameters() {
		numParams += p.Array().NumElements()
	}
	fmt.Printf("%s: %s parameters, %s pixels in %s blocks of %d threads\n",
		model.Net(), humanize.Comma(int64(numParams)), humanize.Comma(int64(cfg.Pixels())),
		humanize.Comma(int64(cfg.Pixels()/cfg.BlockWidth)), cfg.BlockWidth)

	bar := progressbar.NewOptions(*flagIters,
		progressbar.OptionSetDescription("training"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
	var lastLoss float32
	err := trainer.Train(ctx, *flagIters, func(iter int, loss float32) {
		lastLoss = loss
		bar.Describe(fmt.Sprintf("training (loss %.6g)", loss))
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}
	fmt.Printf("Iterations: %d, last loss: %.6g\n", trainer.Steps(), lastLoss)

	if *flagCheck {
		if err := checkMLP(model, buffers, *flagTrain); err != nil {
			return err
		}
	}
	if *flagOut != "" {
		if err := asset.SavePrediction(*flagOut, buffers.Output, cfg.Width, cfg.Height); err != nil {
			return err
		}
		fmt.Printf("Prediction written to %s\n", *flagOut)
	}
	if *flagOracleOut != "" {
		if err := saveOraclePrediction(*flagOracleOut, model, buffers); err != nil {
			return err
		}
		fmt.Printf("Reference prediction written to %s\n", *flagOracleOut)
	}
	if *flagSave != "" {
		c := trainer.Checkpoint(lastLoss)
		c.Metadata = map[string]string{"image": *flagImage, "scenario": "mlp"}
		if err := c.Save(*flagSave); err != nil {
			return err
		}
		info := must.M1(os.Stat(*flagSave))
		fmt.Printf("Checkpoint written to %s (%s)\n", *flagSave, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

func runSingle(ctx context.Context, cfg nn.Config, opts []kernel.Option) error {
	layer := must.M1(nn.NewSingleLayer(cfg))
	input := must.M1(layer.NewInput(rand.New(rand.NewSource(cfg.Seed + 1))))
	output := must.M1(layer.NewOutput())

	tape := autodiff.NewTape()
	opts = append(opts, kernel.WithTape(tape))
	if err := tape.Record(func() error { return layer.Forward(ctx, input, output, opts...) }); err != nil {
		_ = tape.Discard()
		return err
	}
	fmt.Printf("Recorded %d operations over %d blocks\n", tape.Len(), cfg.NumBlocks)
	if err := tape.Backward(output); err != nil {
		return err
	}
	if !*flagCheck {
		return nil
	}
	return checkSingle(layer, input, output)
}
