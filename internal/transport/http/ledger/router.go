package ledgerhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"paperledger/internal/history"
	"paperledger/internal/ledger"
	"paperledger/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxBodyBytes = 1 << 20

// Refresher pulls fresh quotes and marks the ledger.
type Refresher interface {
	Refresh(ctx context.Context) (ledger.MarkResult, error)
}

type HistoryReader interface {
	List(ctx context.Context, limit int) ([]history.Snapshot, error)
}

type Router struct {
	engine      *ledger.Engine
	refresher   Refresher
	history     HistoryReader
	orderSchema *jsonschema.Schema
}

func NewRouter(engine *ledger.Engine, refresher Refresher, hist HistoryReader) (*Router, error) {
	schema, err := compileSchema("order.json", orderSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile order schema: %w", err)
	}
	return &Router{engine: engine, refresher: refresher, history: hist, orderSchema: schema}, nil
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/account/init", r.handleInitAccount)
	group.GET("/account", r.handleAccount)
	group.POST("/account/cash", r.handleAdjustCash)

	group.GET("/positions", r.handlePositions)
	group.GET("/positions/:code", r.handlePosition)
	group.DELETE("/positions/:id", r.handleDeletePosition)
	group.DELETE("/positions", r.handleClearPositions)

	group.POST("/orders", r.handleApplyOrder)
	group.GET("/orders", r.handleOrders)

	group.POST("/marks", r.handleMark)
	group.POST("/marks/refresh", r.handleRefresh)
	group.GET("/marks", r.handleMarks)

	group.POST("/settle", r.handleSettle)
	group.GET("/history", r.handleHistory)
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func reject(c *gin.Context, status int, code, message string, data any) {
	c.JSON(status, envelope{Success: false, Error: code, Message: message, Data: data})
}

// fail maps ledger error kinds onto HTTP statuses.
func fail(c *gin.Context, err error) {
	var (
		funds   *ledger.InsufficientFundsError
		volume  *ledger.InsufficientVolumeError
		missing *ledger.PositionNotFoundError
		invalid *ledger.InvalidRequestError
	)
	switch {
	case errors.As(err, &invalid):
		reject(c, http.StatusBadRequest, "invalid_request", err.Error(), gin.H{"field": invalid.Field})
	case errors.Is(err, ledger.ErrInvalidAction):
		reject(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, ledger.ErrAccountNotInitialized):
		reject(c, http.StatusConflict, "account_not_initialized", err.Error(), nil)
	case errors.As(err, &missing):
		reject(c, http.StatusNotFound, "position_not_found", err.Error(), gin.H{"code": missing.Code})
	case errors.Is(err, ledger.ErrPositionNotFound):
		reject(c, http.StatusNotFound, "position_not_found", err.Error(), nil)
	case errors.As(err, &funds):
		reject(c, http.StatusUnprocessableEntity, "insufficient_funds", err.Error(),
			gin.H{"required": funds.Required, "available": funds.Available})
	case errors.As(err, &volume):
		reject(c, http.StatusUnprocessableEntity, "insufficient_volume", err.Error(),
			gin.H{"code": volume.Code, "required": volume.Required, "available": volume.Available})
	default:
		logger.Errorf("[api] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		reject(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func badRequest(c *gin.Context, message string) {
	reject(c, http.StatusBadRequest, "invalid_request", message, nil)
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (r *Router) handleInitAccount(c *gin.Context) {
	var body struct {
		InitialCash *float64 `json:"initial_cash"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.InitialCash == nil {
		badRequest(c, "initial_cash is required")
		return
	}
	acct, err := r.engine.InitializeAccount(c.Request.Context(), *body.InitialCash)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, acct)
}

func (r *Router) handleAccount(c *gin.Context) {
	acct, err := r.engine.Account(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if acct == nil {
		fail(c, ledger.ErrAccountNotInitialized)
		return
	}
	respond(c, http.StatusOK, acct)
}

func (r *Router) handleAdjustCash(c *gin.Context) {
	var body struct {
		Delta *float64 `json:"delta"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Delta == nil {
		badRequest(c, "delta is required")
		return
	}
	acct, err := r.engine.AdjustCash(c.Request.Context(), *body.Delta)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, acct)
}

func (r *Router) handlePositions(c *gin.Context) {
	positions, err := r.engine.Positions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, positions)
}

func (r *Router) handlePosition(c *gin.Context) {
	code := c.Param("code")
	pos, err := r.engine.Position(c.Request.Context(), code)
	if err != nil {
		fail(c, err)
		return
	}
	if pos == nil {
		fail(c, &ledger.PositionNotFoundError{Code: strings.ToUpper(strings.TrimSpace(code))})
		return
	}
	respond(c, http.StatusOK, pos)
}

func (r *Router) handleDeletePosition(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "position id must be a positive integer")
		return
	}
	deleted, err := r.engine.DeletePosition(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if !deleted {
		reject(c, http.StatusNotFound, "position_not_found", fmt.Sprintf("position %d not found", id), nil)
		return
	}
	respond(c, http.StatusOK, gin.H{"deleted": id})
}

func (r *Router) handleClearPositions(c *gin.Context) {
	n, err := r.engine.ClearPositions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"removed": n})
}

func (r *Router) handleApplyOrder(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		badRequest(c, "read body failed")
		return
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		badRequest(c, "body must be valid JSON")
		return
	}
	if err := r.orderSchema.Validate(doc); err != nil {
		badRequest(c, schemaMessage(err))
		return
	}
	var req ledger.OrderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	order, err := r.engine.ApplyOrder(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, order)
}

func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if loc == "" {
			return leaf.Message
		}
		return loc + ": " + leaf.Message
	}
	return err.Error()
}

func (r *Router) handleOrders(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	orders, err := r.engine.Orders(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, orders)
}

func (r *Router) handleMark(c *gin.Context) {
	var body struct {
		Prices map[string]float64 `json:"prices"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "prices must be an object of code to price")
		return
	}
	res, err := r.engine.MarkPrices(c.Request.Context(), body.Prices)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (r *Router) handleRefresh(c *gin.Context) {
	if r.refresher == nil {
		reject(c, http.StatusServiceUnavailable, "pricing_disabled", "no price source configured", nil)
		return
	}
	res, err := r.refresher.Refresh(c.Request.Context())
	if err != nil {
		if ledger.IsRejection(err) {
			fail(c, err)
			return
		}
		logger.Warnf("[api] price refresh failed: %v", err)
		reject(c, http.StatusBadGateway, "pricing_unavailable", err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, res)
}

func (r *Router) handleMarks(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	marks, err := r.engine.Marks(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, marks)
}

func (r *Router) handleSettle(c *gin.Context) {
	var body struct {
		Codes []string `json:"codes"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "codes must be a list of instrument codes")
			return
		}
	}
	res, err := r.engine.Settle(c.Request.Context(), body.Codes...)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.history == nil {
		reject(c, http.StatusServiceUnavailable, "history_disabled", "history store not configured", nil)
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	snaps, err := r.history.List(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, snaps)
}
