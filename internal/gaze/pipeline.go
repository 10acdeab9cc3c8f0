package gaze

import (
	"context"

	"github.com/rs/zerolog"
)

// Pipeline drains a frame stream into a Heuristic one frame at a time.
type Pipeline struct {
	heuristic *Heuristic
	log       zerolog.Logger
}

func NewPipeline(h *Heuristic, log zerolog.Logger) *Pipeline {
	return &Pipeline{heuristic: h, log: log}
}

// Run blocks until frames is closed or ctx is cancelled. A frame that fails
// is logged and skipped.
func (p *Pipeline) Run(ctx context.Context, frames <-chan Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := p.heuristic.Process(frame); err != nil {
				p.log.Warn().Err(err).Msg("Face frame processing failed")
			}
		}
	}
}
