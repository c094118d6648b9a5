package api

import (
	"context"
	"net/http"

	"pos-service/internal/models"
	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
)

// TableService is the table surface the handlers use
type TableService interface {
	CreateTable(ctx context.Context, req *service.CreateTableRequest) (*models.Table, error)
	GetTable(ctx context.Context, id int64) (*models.Table, error)
	GetTableByToken(ctx context.Context, token string) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	UpdateTable(ctx context.Context, id int64, req *service.CreateTableRequest) (*models.Table, error)
	DeleteTable(ctx context.Context, id int64) error
	RegenerateAllQRImages(ctx context.Context) (int, error)
}

// getTableByToken resolves a scanned QR code for the kiosk
func (h *Handler) getTableByToken(c *gin.Context) {
	table, err := h.Tables.GetTableByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           table.ID,
		"table_number": table.TableNumber,
		"capacity":     table.Capacity,
		"status":       table.Status,
	})
}

func (h *Handler) listTables(c *gin.Context) {
	tables, err := h.Tables.ListTables(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

func (h *Handler) getTable(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	table, err := h.Tables.GetTable(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *Handler) createTable(c *gin.Context) {
	var req service.CreateTableRequest
	if !bindJSON(c, &req) {
		return
	}
	table, err := h.Tables.CreateTable(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

func (h *Handler) updateTable(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.CreateTableRequest
	if !bindJSON(c, &req) {
		return
	}
	table, err := h.Tables.UpdateTable(c.Request.Context(), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *Handler) deleteTable(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Tables.DeleteTable(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) regenerateQR(c *gin.Context) {
	n, err := h.Tables.RegenerateAllQRImages(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"regenerated": n})
}
