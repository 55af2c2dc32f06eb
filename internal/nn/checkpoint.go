package nn

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/serialization"
)

// Metadata keys written by Checkpoint.Save.
const (
	metaStep      = "step"
	metaLoss      = "loss"
	metaLR        = "lr"
	metaCreatedAt = "created_at"
)

// Checkpoint is a snapshot of a model's parameters and of the training
// progress, stored as a SafeTensors file.
type Checkpoint struct {
	Model     Module            // The model whose parameters are saved or restored
	Step      int               // Training iterations completed
	Loss      float32           // Loss of the last iteration
	LR        float32           // Learning rate in use
	Metadata  map[string]string // Additional metadata
	CreatedAt time.Time         // When the checkpoint was created
}

// Save writes the parameters and metadata to path.
func (c *Checkpoint) Save(path string) error {
	meta := make(map[string]string, len(c.Metadata)+4)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	meta[metaStep] = strconv.Itoa(c.Step)
	meta[metaLoss] = strconv.FormatFloat(float64(c.Loss), 'g', -1, 32)
	meta[metaLR] = strconv.FormatFloat(float64(c.LR), 'g', -1, 32)
	meta[metaCreatedAt] = createdAt.Format(time.RFC3339)

	if err := serialization.WriteSafeTensors(path, StateDict(c.Model), meta); err != nil {
		return errors.WithMessage(err, "nn: save checkpoint")
	}
	return nil
}

// LoadCheckpoint restores the parameters of model from path and returns the
// checkpoint metadata.
func LoadCheckpoint(path string, model Module) (*Checkpoint, error) {
	state, meta, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return nil, errors.WithMessage(err, "nn: load checkpoint")
	}
	if err := LoadStateDict(model, state); err != nil {
		return nil, errors.WithMessagef(err, "nn: load checkpoint %s", path)
	}

	c := &Checkpoint{Model: model, Metadata: make(map[string]string)}
	for k, v := range meta {
		switch k {
		case metaStep:
			c.Step, err = strconv.Atoi(v)
		case metaLoss:
			c.Loss, err = parseFloat32(v)
		case metaLR:
			c.LR, err = parseFloat32(v)
		case metaCreatedAt:
			c.CreatedAt, err = time.Parse(time.RFC3339, v)
		default:
			c.Metadata[k] = v
		}
		if err != nil {
			return nil, errors.Wrapf(err, "nn: checkpoint metadata %q", k)
		}
	}
	return c, nil
}

func parseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}
