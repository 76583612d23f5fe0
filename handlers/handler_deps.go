package handlers

import (
	"context"

	"github.com/sirupsen/logrus"

	"audiototext/api-gateway/internal/capture"
	"audiototext/api-gateway/models"
)

// PipelineInterface defines the operations handlers expect from the artifact
// transport. This allows for decoupling and easier testing; the concrete
// implementation is provided by the transport package.
type PipelineInterface interface {
	ProcessEncoded(ctx context.Context, encodedAudio, filename string, tier models.PlanTier) (*models.ProcessingResult, error)
	ProcessArtifact(ctx context.Context, data []byte, filename string, tier models.PlanTier) (*models.ProcessingResult, error)
}

// LedgerInterface is the usage ledger surface the handlers consume.
type LedgerInterface interface {
	Get(ctx context.Context, identity string) (*models.UsageRecord, error)
	CheckAndReserve(ctx context.Context, identity string) (*models.UsageRecord, error)
	RecordUsage(ctx context.Context, identity string) error
}

// HistoryInterface persists and retrieves transcription sessions.
type HistoryInterface interface {
	Save(ctx context.Context, identity string, result *models.ProcessingResult) (*models.TranscriptionSession, error)
	List(ctx context.Context, identity string) ([]models.TranscriptionSession, error)
	GetByID(ctx context.Context, identity, sessionID string) (*models.TranscriptionSession, error)
	ToggleActionItem(ctx context.Context, identity, sessionID, itemID string) (*models.TranscriptionSession, error)
}

// BillingInterface is the plan upgrade flow.
type BillingInterface interface {
	InitiateUpgrade(ctx context.Context, identity string, target models.PlanTier) (string, error)
	Reconcile(ctx context.Context, identity string) error
	CurrentPlan(ctx context.Context, identity string) (models.PlanTier, int, error)
}

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Pipeline PipelineInterface
	Ledger   LedgerInterface
	History  HistoryInterface
	Billing  BillingInterface
	Capture  *capture.Session
	Logger   *logrus.Logger
}

// NewApplicationHandler creates a new ApplicationHandler with the given dependencies.
func NewApplicationHandler(pipeline PipelineInterface, ledger LedgerInterface, history HistoryInterface, billing BillingInterface, captureSession *capture.Session, logger *logrus.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		Pipeline: pipeline,
		Ledger:   ledger,
		History:  history,
		Billing:  billing,
		Capture:  captureSession,
		Logger:   logger,
	}
}
