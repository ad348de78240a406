package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andresuchdata/order-tracker/internal/domain"
	"github.com/andresuchdata/order-tracker/internal/service"
	"github.com/gin-gonic/gin"
)

// OrderTracker is implemented by service.TrackerService.
type OrderTracker interface {
	Track(ctx context.Context, rawKey string) domain.LookupResult
	Pipeline() service.PipelineView
}

type OrderHandler struct {
	tracker OrderTracker
}

func NewOrderHandler(tracker OrderTracker) *OrderHandler {
	return &OrderHandler{tracker: tracker}
}

type orderResponse struct {
	Outcome    domain.Outcome `json:"outcome"`
	Query      string         `json:"query"`
	Message    string         `json:"message,omitempty"`
	Order      *domain.Order  `json:"order,omitempty"`
	HasRemarks bool           `json:"has_remarks"`
	Progress   int            `json:"progress"`
	Stage      int            `json:"stage"`
	Ranked     bool           `json:"ranked"`
	Pipeline   []string       `json:"pipeline"`
	Flow       []string       `json:"flow"`
}

// GetOrder looks up the order named in the path, e.g. /orders/40100
func (h *OrderHandler) GetOrder(c *gin.Context) {
	h.respond(c, c.Param("number"))
}

// SearchOrder looks up the order named by the number query parameter, the
// way a search form submits it.
func (h *OrderHandler) SearchOrder(c *gin.Context) {
	h.respond(c, c.Query("number"))
}

// GetPipeline returns the stage labels for drawing the flow.
func (h *OrderHandler) GetPipeline(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Pipeline())
}

func (h *OrderHandler) respond(c *gin.Context, rawKey string) {
	result := h.tracker.Track(c.Request.Context(), rawKey)
	view := h.tracker.Pipeline()

	resp := orderResponse{
		Outcome:  result.Outcome,
		Query:    result.Query,
		Order:    result.Order,
		Progress: result.Progress,
		Stage:    result.Stage,
		Ranked:   result.Ranked,
		Pipeline: view.Labels,
		Flow:     view.Flow,
	}
	if result.Order != nil {
		resp.HasRemarks = result.Order.HasRemarks()
	}

	status := http.StatusOK
	switch result.Outcome {
	case domain.OutcomeEmptyQuery:
		status = http.StatusBadRequest
		resp.Message = fmt.Sprintf("Please enter a %s.", view.KeyLabel)
	case domain.OutcomeNotFound:
		status = http.StatusNotFound
		resp.Message = fmt.Sprintf("Order not found: %s", result.Query)
	case domain.OutcomeUnavailable:
		status = http.StatusServiceUnavailable
		resp.Message = "System Error: Connection failed."
	}

	c.JSON(status, resp)
}
