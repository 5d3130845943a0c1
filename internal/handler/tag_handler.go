package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/service"
)

type tagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

// ListTags 返回用户的全部标签
func (a *API) ListTags(c *gin.Context) {
	tags, err := a.tags.List(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list tags")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// CreateTag 新建标签
func (a *API) CreateTag(c *gin.Context) {
	var req tagRequest
	if !bindJSON(c, &req, "name is required") {
		return
	}

	tag, err := a.tags.Create(currentUserID(c), req.Name, req.Color)
	if err != nil {
		a.respondTagError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": tag})
}

// UpdateTag 改名或换色
func (a *API) UpdateTag(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req tagRequest
	if !bindJSON(c, &req, "name is required") {
		return
	}

	tag, err := a.tags.Update(currentUserID(c), id, req.Name, req.Color)
	if err != nil {
		a.respondTagError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// DeleteTag 删除未被任务引用的标签
func (a *API) DeleteTag(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.tags.Delete(currentUserID(c), id); err != nil {
		a.respondTagError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tag deleted"})
}

func (a *API) respondTagError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTagNotFound):
		respondError(c, http.StatusNotFound, "tag not found")
	case errors.Is(err, service.ErrTagExists):
		respondError(c, http.StatusConflict, "tag already exists")
	case errors.Is(err, service.ErrTagInUse):
		respondError(c, http.StatusConflict, "tag is associated with tasks")
	default:
		respondError(c, http.StatusBadRequest, err.Error())
	}
}
