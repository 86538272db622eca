// Command rnntrain trains a character-level recurrent model on a UTF-8
// line corpus (spec.md §6's example training driver): it loads a corpus,
// builds a StackedModel, and runs Hogwild SGD/AdaDelta/RMSProp across a
// worker pool, periodically reporting validation cross-entropy and
// checkpointing parameters to disk.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/born-ml/born/internal/blob"
	"github.com/born-ml/born/internal/config"
	"github.com/born-ml/born/internal/corpus"
	"github.com/born-ml/born/internal/model"
	"github.com/born-ml/born/internal/solver"
)

func main() {
	var (
		corpusPath = flag.String("corpus", "", "path to a UTF-8 line corpus")
		vocabSize  = flag.Int("vocab", 300, "vocabulary size")
		embedDim   = flag.Int("embed", 5, "embedding dimension")
		hidden     = flag.String("hidden", "20,20", "comma-separated hidden sizes")
		minibatch  = flag.Int("minibatch", 20, "lines per minibatch")
		workers    = flag.Int("workers", 5, "number of Hogwild worker goroutines")
		epochs     = flag.Int("epochs", 50, "number of training epochs")
		solverName = flag.String("solver", "adadelta", "solver: sgd, rmsprop, adadelta")
		lr         = flag.Float64("lr", 0.01, "learning rate (sgd, rmsprop)")
		seed       = flag.Int64("seed", 1, "random seed")
		checkpoint = flag.String("checkpoint", "", "directory to save parameter checkpoints into")
		valEvery   = flag.Int("val-every", 5, "epochs between validation reports")
		sampleLen  = flag.Int("sample-len", 0, "if >0, greedily reconstruct a sample of this length from symbol 0 after training")
	)
	flag.Parse()

	if *corpusPath == "" {
		log.Fatal("rnntrain: -corpus is required")
	}

	hiddenSizes, err := parseInts(*hidden)
	if err != nil {
		log.Fatalf("rnntrain: -hidden: %v", err)
	}

	f, err := os.Open(*corpusPath)
	if err != nil {
		log.Fatalf("rnntrain: open corpus: %v", err)
	}
	defer f.Close()

	data, err := corpus.Load(f, *vocabSize, 0, *vocabSize-1)
	if err != nil {
		log.Fatalf("rnntrain: load corpus: %v", err)
	}
	log.Printf("rnntrain: loaded %d lines from %s", data.NumLines(), *corpusPath)

	trainLines, valLines := split(data.Lines, 0.9)

	rng := rand.New(rand.NewSource(*seed))
	m := model.New(*vocabSize, *embedDim, hiddenSizes, rng)

	sv := buildSolver(*solverName, float32(*lr))
	cfg := model.TrainConfig{
		Workers:   *workers,
		Minibatch: *minibatch,
		Solver:    sv,
		GradScale: 1.0 / float32(*minibatch),
	}

	for epoch := 1; epoch <= *epochs; epoch++ {
		model.TrainEpoch(m, trainLines, cfg)
		if epoch%*valEvery == 0 || epoch == *epochs {
			loss := model.Validate(m, valLines)
			log.Printf("epoch %d: validation cross-entropy %.4f", epoch, loss)
		}
	}

	if *checkpoint != "" {
		if err := blob.SaveParameters(*checkpoint, m.Parameters()); err != nil {
			log.Fatalf("rnntrain: save checkpoint: %v", err)
		}
		if err := saveConfiguration(*checkpoint, m.Configuration()); err != nil {
			log.Fatalf("rnntrain: save configuration: %v", err)
		}
		log.Printf("rnntrain: saved checkpoint to %s", *checkpoint)
	}

	if *sampleLen > 0 {
		sample := m.Reconstruct(0, *vocabSize-1, *sampleLen)
		log.Printf("rnntrain: sample symbols: %v", sample)
	}
}

// saveConfiguration writes the model's hyperparameters next to its
// checkpoint, so a later run can rebuild the same shape before loading
// weights via blob.LoadParameters.
func saveConfiguration(dir string, cfg *config.Map) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "config.txt"))
	if err != nil {
		return err
	}
	defer f.Close()
	return config.Save(f, cfg)
}

func buildSolver(name string, lr float32) solver.Solver {
	switch strings.ToLower(name) {
	case "sgd":
		return solver.NewSGD(lr)
	case "rmsprop":
		return solver.NewRMSProp(lr, 0.95, 1e-8, 5.0)
	case "adadelta":
		return solver.DefaultAdaDelta()
	default:
		log.Fatalf("rnntrain: unknown solver %q", name)
		return nil
	}
}

func parseInts(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// split partitions lines into a training and validation set, taking the
// first frac fraction of lines for training.
func split(lines [][]int, frac float64) (train, val [][]int) {
	n := int(float64(len(lines)) * frac)
	return lines[:n], lines[n:]
}
