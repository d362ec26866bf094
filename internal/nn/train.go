package nn

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"tankai/internal/config"
	"tankai/internal/logging"
	"tankai/internal/model"
)

// TrainOptions is the fixed fitting regime.
type TrainOptions struct {
	Epochs    int
	BatchSize int
	LR        float64
	Seed      uint64
}

// DefaultTrainOptions returns 10 epochs of batch 32 at Adam's usual step size.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Epochs: 10, BatchSize: 32, LR: 0.001, Seed: 1}
}

// OptionsFrom reads the fitting regime from config; zero fields keep the defaults.
func OptionsFrom(cfg config.TrainerConfig) TrainOptions {
	o := TrainOptions{Epochs: cfg.Epochs, BatchSize: cfg.BatchSize, LR: cfg.LR, Seed: cfg.Seed}
	if o.Seed == 0 {
		o.Seed = DefaultTrainOptions().Seed
	}
	return o.withDefaults()
}

func (o TrainOptions) withDefaults() TrainOptions {
	d := DefaultTrainOptions()
	if o.Epochs <= 0 {
		o.Epochs = d.Epochs
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.LR <= 0 {
		o.LR = d.LR
	}
	return o
}

// Native trains in-process with minibatch Adam on binary cross-entropy.
type Native struct{}

func (Native) Name() string    { return "native" }
func (Native) Available() bool { return true }

// params is the flat parameter layout: W1 (8x6), B1 (8), W2 (8), B2 (1).
const (
	offB1   = Hidden * model.FeatureWidth
	offW2   = offB1 + Hidden
	offB2   = offW2 + Hidden
	nParams = offB2 + 1
)

type adam struct {
	lr, b1, b2, eps float64
	m, v            [nParams]float64
	t               int
}

func (a *adam) step(p, g *[nParams]float64) {
	a.t++
	c1 := 1 - math.Pow(a.b1, float64(a.t))
	c2 := 1 - math.Pow(a.b2, float64(a.t))
	for i := range p {
		a.m[i] = a.b1*a.m[i] + (1-a.b1)*g[i]
		a.v[i] = a.b2*a.v[i] + (1-a.b2)*g[i]*g[i]
		p[i] -= a.lr * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + a.eps)
	}
}

func (Native) Fit(ctx context.Context, ts model.TrainingSet, opts TrainOptions) (*Model, error) {
	opts = opts.withDefaults()
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var p [nParams]float64
	glorot(rng, p[:offB1], model.FeatureWidth, Hidden)
	glorot(rng, p[offW2:offB2], Hidden, 1)
	opt := &adam{lr: opts.LR, b1: 0.9, b2: 0.999, eps: 1e-7}

	order := make([]int, ts.Len())
	for i := range order {
		order[i] = i
	}
	progress := rate.Sometimes{Interval: time.Second}
	losses := make([]float64, 0, opts.Epochs)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		total := 0.0
		for start := 0; start < len(order); start += opts.BatchSize {
			end := min(start+opts.BatchSize, len(order))
			var g [nParams]float64
			for _, idx := range order[start:end] {
				total += backprop(&p, &g, ts.X[idx], float64(ts.Y[idx]))
			}
			scale := 1 / float64(end-start)
			for i := range g {
				g[i] *= scale
			}
			opt.step(&p, &g)
		}
		loss := total / float64(len(order))
		losses = append(losses, loss)
		progress.Do(func() {
			logging.Info("train_epoch", map[string]any{"epoch": epoch + 1, "loss": loss})
		})
	}

	m := toModel(&p)
	m.Losses = losses
	return m, nil
}

// backprop accumulates the gradient of one example into g and returns its loss.
func backprop(p, g *[nParams]float64, x model.FeatureVector, y float64) float64 {
	var pre, h [Hidden]float64
	for j := 0; j < Hidden; j++ {
		z := p[offB1+j]
		for k := 0; k < model.FeatureWidth; k++ {
			z += p[j*model.FeatureWidth+k] * float64(x[k])
		}
		pre[j] = z
		h[j] = math.Max(0, z)
	}
	z := p[offB2]
	for j := 0; j < Hidden; j++ {
		z += p[offW2+j] * h[j]
	}
	prob := sigmoid(z)
	dz := prob - y

	g[offB2] += dz
	for j := 0; j < Hidden; j++ {
		g[offW2+j] += dz * h[j]
		if pre[j] <= 0 {
			continue
		}
		dh := dz * p[offW2+j]
		g[offB1+j] += dh
		for k := 0; k < model.FeatureWidth; k++ {
			g[j*model.FeatureWidth+k] += dh * float64(x[k])
		}
	}
	return bce(prob, y)
}

func glorot(rng *rand.Rand, w []float64, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

func toModel(p *[nParams]float64) *Model {
	m := &Model{B2: float32(p[offB2])}
	for j := 0; j < Hidden; j++ {
		for k := 0; k < model.FeatureWidth; k++ {
			m.W1[j][k] = float32(p[j*model.FeatureWidth+k])
		}
		m.B1[j] = float32(p[offB1+j])
		m.W2[j] = float32(p[offW2+j])
	}
	return m
}
