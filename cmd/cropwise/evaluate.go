package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/mimir-aip/cropwise/pkg/evaluation"
	"github.com/mimir-aip/cropwise/pkg/models"
)

var (
	evalInput  models.FeatureVector
	evalKind   string
	evalRuns   int
	evalNoise  float64
	evalSeed   int64
	evalLevels []float64

	evaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "Run a robustness evaluation against the configured models and print JSON",
		Example: `  cropwise evaluate --kind full --n 90 --p 42 --k 43 --temperature 20.87 --humidity 82 --rainfall 202.93
  cropwise evaluate --kind noise --runs 100 --noise 0.1 --seed 7`,
		RunE: runEvaluate,
	}
)

func init() {
	f := evaluateCmd.Flags()
	f.Float64Var(&evalInput.N, "n", 90, "nitrogen")
	f.Float64Var(&evalInput.P, "p", 42, "phosphorus")
	f.Float64Var(&evalInput.K, "k", 43, "potassium")
	f.Float64Var(&evalInput.Temperature, "temperature", models.FeatureDefaults[models.FeatureTemperature], "temperature in Celsius")
	f.Float64Var(&evalInput.Humidity, "humidity", models.FeatureDefaults[models.FeatureHumidity], "relative humidity percent")
	f.Float64Var(&evalInput.PH, "ph", models.DefaultPH, "soil pH")
	f.Float64Var(&evalInput.Rainfall, "rainfall", models.FeatureDefaults[models.FeatureRainfall], "rainfall in mm")
	f.StringVar(&evalKind, "kind", "full", "full, noise, noise-levels, missing, agreement or agreement-stability")
	f.IntVar(&evalRuns, "runs", 0, "perturbation runs (0 uses the evaluation default)")
	f.Float64Var(&evalNoise, "noise", models.DefaultNoiseLevel, "noise fraction in [0, 1]")
	f.Float64SliceVar(&evalLevels, "levels", nil, "noise levels for noise-levels")
	f.Int64Var(&evalSeed, "seed", 0, "noise seed (0 seeds from the clock)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	var injector *evaluation.Injector
	if evalSeed != 0 {
		injector = evaluation.NewInjector(rand.NewSource(evalSeed))
	}
	svc, err := buildServices(cfg, injector)
	if err != nil {
		return err
	}

	result, err := evaluate(cmd.Context(), svc.runner, evalKind, evalInput)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func evaluate(ctx context.Context, r *evaluation.Runner, kind string, v models.FeatureVector) (any, error) {
	noise := evaluation.NoiseParams{Percentage: evalNoise, Runs: evalRuns}
	if noise.Runs == 0 {
		noise.Runs = models.DefaultNoiseRuns
	}

	switch kind {
	case "full":
		p := evaluation.FullParams{RSSRuns: evalRuns, NoiseLevel: evalNoise}
		if p.RSSRuns == 0 {
			p.RSSRuns = models.DefaultRSSRuns
		}
		return r.RunFull(ctx, v, p)
	case "noise":
		return r.EvaluateNoise(ctx, v, noise)
	case "noise-levels":
		runs := evalRuns
		if runs == 0 {
			runs = models.DefaultRunsPerLevel
		}
		return r.EvaluateNoiseLevels(ctx, v, evalLevels, runs)
	case "missing":
		return r.EvaluateMissing(ctx, v)
	case "agreement":
		return r.EvaluateAgreement(ctx, v)
	case "agreement-stability":
		return r.EvaluateAgreementStability(ctx, v, noise)
	}
	return nil, fmt.Errorf("unknown evaluation kind %q", kind)
}
