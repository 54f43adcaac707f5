package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
	"github.com/suPer8Hu/swaif-depths/internal/common"
)

const maxIngestBody = 4 << 20

// decodePayloads accepts a single payload object or an array of them.
func decodePayloads(body []byte) ([]chat.Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var out []chat.Payload
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var p chat.Payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, err
	}
	return []chat.Payload{p}, nil
}

// IngestMessages stores upstream payloads as pending raw messages, or
// enqueues them when a queue is configured. Invalid payloads are counted
// and skipped; a body with nothing valid is a 400.
func (h *Handler) IngestMessages(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIngestBody))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "failed to read body")
		return
	}
	payloads, err := decodePayloads(body)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(payloads) == 0 {
		common.Fail(c, http.StatusBadRequest, 10002, "no payloads")
		return
	}

	if h.Queue != nil {
		h.enqueue(c, payloads)
		return
	}

	ctx := c.Request.Context()
	stored, rejected, err := h.Ingestor.IngestBatch(ctx, "http", payloads)
	if err != nil {
		internalError(c, 50001, "failed to store messages", err)
		return
	}
	if stored == 0 {
		common.Fail(c, http.StatusBadRequest, 10003, "no valid payloads")
		return
	}
	common.OK(c, gin.H{"stored": stored, "rejected": rejected, "queued": false})
}

func (h *Handler) enqueue(c *gin.Context, payloads []chat.Payload) {
	ctx := c.Request.Context()
	queued, rejected := 0, 0
	for i, p := range payloads {
		if err := h.Ingestor.Validate(p); err != nil {
			rejected++
			h.Log.Warn("payload rejected", zap.Int("index", i), zap.Error(err))
			continue
		}
		if err := h.Queue.PublishPayload(ctx, p); err != nil {
			internalError(c, 50002, "failed to enqueue messages", err)
			return
		}
		queued++
	}
	if queued == 0 {
		common.Fail(c, http.StatusBadRequest, 10003, "no valid payloads")
		return
	}
	common.OK(c, gin.H{"stored": queued, "rejected": rejected, "queued": true})
}
