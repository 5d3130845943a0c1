package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/service"
)

// RunSync 立即同步调用者的全部启用连接
// 单个连接出错不影响整体响应，结果里逐条报告
func (a *API) RunSync(c *gin.Context) {
	window := service.SyncWindow{}
	if start, ok, err := parseTimeQuery(c, "start"); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	} else if ok {
		window.Start = &start
	}
	if end, ok, err := parseTimeQuery(c, "end"); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	} else if ok {
		window.End = &end
	}

	result, err := a.sync.SyncAll(c.Request.Context(), currentUserID(c), window)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to sync calendars")
		return
	}
	c.JSON(http.StatusOK, result)
}
