package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/db"
	"github.com/miniorg/internal/service"
)

type ritualRequest struct {
	HighlightID *uint  `json:"highlightId"`
	Timeline    []uint `json:"timeline"`
	Date        string `json:"date"`
}

// GetRitual 返回某天的计划，没有时 ritual 为 null
func (a *API) GetRitual(c *gin.Context) {
	date, err := parseDateQuery(c, "date")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ritual, err := a.rituals.Get(currentUserID(c), date)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to get daily ritual")
		return
	}
	if ritual == nil {
		c.JSON(http.StatusOK, gin.H{"ritual": nil})
		return
	}

	view, err := ritualView(ritual)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to decode daily ritual")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ritual": view})
}

// SetRitual 创建或更新某天的计划
func (a *API) SetRitual(c *gin.Context) {
	var req ritualRequest
	if !bindJSON(c, &req, "invalid ritual payload") {
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid date")
			return
		}
		date = parsed
	}

	ritual, err := a.rituals.Upsert(currentUserID(c), date, service.RitualInput{
		HighlightID: req.HighlightID,
		Timeline:    req.Timeline,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save daily ritual")
		return
	}

	view, err := ritualView(ritual)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to decode daily ritual")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ritual": view})
}

func ritualView(ritual *db.DailyRitual) (gin.H, error) {
	timeline, err := service.TimelineIDs(ritual)
	if err != nil {
		return nil, err
	}

	view := gin.H{
		"id":          ritual.ID,
		"date":        ritual.Date.Format("2006-01-02"),
		"highlightId": ritual.HighlightID,
		"timeline":    timeline,
	}
	if ritual.Highlight != nil {
		view["highlight"] = taskView(*ritual.Highlight, time.Now())
	}
	return view, nil
}
