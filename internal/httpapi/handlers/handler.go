package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
	"github.com/suPer8Hu/swaif-depths/internal/common"
	"github.com/suPer8Hu/swaif-depths/pkg/logger"
)

// Enqueuer hands payloads to the ingestion queue instead of storing them
// inline. *rabbitmq.Publisher satisfies it.
type Enqueuer interface {
	PublishPayload(ctx context.Context, p chat.Payload) error
}

type Handler struct {
	Repo     *chat.Repo
	Ingestor *chat.Ingestor
	Grouper  *chat.Grouper
	History  *chat.HistoryService
	// Queue is optional; nil means POST /messages writes straight to L1.
	Queue Enqueuer
	Log   *logger.Logger
}

func NewHandler(repo *chat.Repo, ingestor *chat.Ingestor, grouper *chat.Grouper, history *chat.HistoryService, queue Enqueuer, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		Repo:     repo,
		Ingestor: ingestor,
		Grouper:  grouper,
		History:  history,
		Queue:    queue,
		Log:      log,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func internalError(c *gin.Context, code int, msg string, err error) {
	_ = c.Error(err)
	common.Fail(c, http.StatusInternalServerError, code, msg)
}
