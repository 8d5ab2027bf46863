package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bams-platform/bams-api/internal/models"
	"github.com/bams-platform/bams-api/pkg/response"
)

type tagLister interface {
	List(ctx context.Context) ([]models.TagDictionary, error)
}

type dictionaryLister interface {
	ListByType(ctx context.Context, dictType string) ([]models.DictionaryEntry, error)
}

// DictionaryHandler exposes the tag dictionary and coded value lookups.
type DictionaryHandler struct {
	tags tagLister
	dict dictionaryLister
}

// NewDictionaryHandler constructs the handler.
func NewDictionaryHandler(tags tagLister, dict dictionaryLister) *DictionaryHandler {
	return &DictionaryHandler{tags: tags, dict: dict}
}

// Tags returns all dictionary tags ordered by usage.
func (h *DictionaryHandler) Tags(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tags, nil)
}

// Entries returns the entries of one dictionary type.
func (h *DictionaryHandler) Entries(c *gin.Context) {
	entries, err := h.dict.ListByType(c.Request.Context(), c.Param("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
