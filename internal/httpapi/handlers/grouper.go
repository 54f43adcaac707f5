package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
	"github.com/suPer8Hu/swaif-depths/internal/common"
)

// RunGrouper runs one grouping pass now. A malformed timestamp aborts the
// pass and is reported as 422 so the caller can fix the offending row.
func (h *Handler) RunGrouper(c *gin.Context) {
	run, summaries, err := h.Grouper.Run(c.Request.Context(), "http")
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, chat.ErrInvalidTimestamp) {
			common.Fail(c, http.StatusUnprocessableEntity, 42201, err.Error())
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50010, "grouping failed")
		return
	}

	grouped := 0
	for _, s := range summaries {
		grouped += s.MessageCount
	}
	resp := gin.H{
		"messages_grouped": grouped,
		"conversations":    summaries,
	}
	if run != nil {
		resp["run_id"] = run.ID
	}
	common.OK(c, resp)
}

func (h *Handler) ListGroupRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.Repo.ListGroupRuns(c.Request.Context(), limit)
	if err != nil {
		internalError(c, 50011, "failed to list runs", err)
		return
	}
	common.OK(c, gin.H{"runs": runs})
}

func (h *Handler) GetGroupRun(c *gin.Context) {
	run, err := h.Repo.GetGroupRun(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "run not found")
			return
		}
		internalError(c, 50012, "failed to load run", err)
		return
	}
	common.OK(c, run)
}

func (h *Handler) Stats(c *gin.Context) {
	recent, _ := strconv.Atoi(c.Query("recent"))
	s, err := h.Repo.Stats(c.Request.Context(), recent)
	if err != nil {
		internalError(c, 50013, "failed to load stats", err)
		return
	}
	common.OK(c, s)
}
