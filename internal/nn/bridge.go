package nn

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"tankai/internal/model"
)

// example is the JSONL row fed to an external trainer.
type example struct {
	X []float32 `json:"x"`
	Y []float32 `json:"y"`
}

// Exec trains by calling an external binary that reads JSONL examples on stdin
// and writes the Model weights as JSON to the --out path.
type Exec struct {
	bin    string
	tmpDir string
	found  bool
}

// NewExec resolves binaryPath on PATH once; an unresolved binary makes the backend unavailable.
func NewExec(binaryPath, tmpDir string) *Exec {
	e := &Exec{tmpDir: tmpDir}
	if binaryPath == "" {
		return e
	}
	if p, err := exec.LookPath(binaryPath); err == nil {
		e.bin, e.found = p, true
	}
	return e
}

func (e *Exec) Name() string    { return "exec" }
func (e *Exec) Available() bool { return e.found }

func (e *Exec) Fit(ctx context.Context, ts model.TrainingSet, opts TrainOptions) (*Model, error) {
	if !e.found {
		return nil, ErrUnavailable
	}
	opts = opts.withDefaults()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	enc := json.NewEncoder(w)
	for i := range ts.X {
		if err := enc.Encode(example{X: ts.X[i][:], Y: []float32{ts.Y[i]}}); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(e.tmpDir, "tankai-weights-*.json")
	if err != nil {
		return nil, fmt.Errorf("weights temp file: %w", err)
	}
	outPath := out.Name()
	_ = out.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, e.bin, "train",
		"--out", outPath,
		"--hidden", fmt.Sprint(Hidden),
		"--epochs", fmt.Sprint(opts.Epochs),
		"--batch", fmt.Sprint(opts.BatchSize),
		"--lr", fmt.Sprint(opts.LR))
	cmd.Stdin = &buf
	if combined, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("train error: %v: %s", err, string(combined))
	}

	b, err := os.ReadFile(outPath)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	return &m, nil
}
