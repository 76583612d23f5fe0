package transport

import (
	"context"
	"fmt"

	"audiototext/api-gateway/models"
)

// ModelClient is the upstream pipeline the handlers expect. The concrete
// implementation lives in the aiclient package; tests substitute fakes.
type ModelClient interface {
	Process(ctx context.Context, audio []byte, filename string, tier models.PlanTier) (*models.ProcessingResult, error)
}

// Pipeline is the artifact transport: it owns the encode/decode boundary and
// hands decoded audio to the model client. Binary audio never crosses the
// wire un-encoded; both directions go through the base64 codec.
type Pipeline struct {
	client ModelClient
}

func NewPipeline(client ModelClient) *Pipeline {
	return &Pipeline{client: client}
}

// ProcessEncoded decodes a transport-safe payload and runs it through the
// model pipeline.
func (p *Pipeline) ProcessEncoded(ctx context.Context, encodedAudio, filename string, tier models.PlanTier) (*models.ProcessingResult, error) {
	audio, err := DecodeAudio(encodedAudio)
	if err != nil {
		return nil, fmt.Errorf("invalid audio payload: %w", err)
	}
	return p.client.Process(ctx, audio, filename, tier)
}

// ProcessArtifact ships a finished capture artifact through the same
// boundary as an uploaded payload.
func (p *Pipeline) ProcessArtifact(ctx context.Context, data []byte, filename string, tier models.PlanTier) (*models.ProcessingResult, error) {
	return p.ProcessEncoded(ctx, EncodeAudio(data), filename, tier)
}
