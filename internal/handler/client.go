package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-crm/internal/middleware"
	"github.com/iliyamo/pipeline-crm/internal/pipeline"
)

// ClientHandler exposes the pipeline service under /api/client.
type ClientHandler struct {
	Pipeline *pipeline.Service
	Secure   bool
}

func NewClientHandler(p *pipeline.Service, secure bool) *ClientHandler {
	return &ClientHandler{Pipeline: p, Secure: secure}
}

// amount accepts a whole JSON number or a numeric string; browser forms
// send the latter.  Fractions, exponents and non-finite values are
// rejected rather than rounded.
type amount int64

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(bytes.Trim(b, `"`))
	if len(b) == 0 || string(b) == "null" {
		*a = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("deal value %q is not a whole number", b)
	}
	*a = amount(n)
	return nil
}

type clientReq struct {
	ID        string  `json:"id"`
	Name      *string `json:"name"`
	Company   string  `json:"company"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	DealValue *amount `json:"dealValue"`
	DealSnake *amount `json:"deal_value"`
	Stage     string  `json:"stage"`
	Notes     string  `json:"notes"`
}

func (r clientReq) dealValue() int64 {
	switch {
	case r.DealValue != nil:
		return int64(*r.DealValue)
	case r.DealSnake != nil:
		return int64(*r.DealSnake)
	}
	return 0
}

type stageReq struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
}

type deleteReq struct {
	ClientID string `json:"clientId"`
}

func (h *ClientHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	return writeResult(c, h.Pipeline.List(ctx, middleware.Credentials(c)), h.Secure)
}

func (h *ClientHandler) Create(c echo.Context) error {
	var req clientReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	res := h.Pipeline.Create(ctx, middleware.Credentials(c), pipeline.CreateInput{
		Name:      req.Name,
		Company:   req.Company,
		Email:     req.Email,
		Phone:     req.Phone,
		DealValue: req.dealValue(),
		Stage:     req.Stage,
		Notes:     req.Notes,
	})
	return writeResult(c, res, h.Secure)
}

// Edit overwrites the editable fields; the stage is ignored here.
func (h *ClientHandler) Edit(c echo.Context) error {
	var req clientReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	res := h.Pipeline.Edit(ctx, middleware.Credentials(c), pipeline.EditInput{
		ID:        req.ID,
		Name:      req.Name,
		Company:   req.Company,
		Email:     req.Email,
		Phone:     req.Phone,
		DealValue: req.dealValue(),
		Notes:     req.Notes,
	})
	return writeResult(c, res, h.Secure)
}

func (h *ClientHandler) UpdateStage(c echo.Context) error {
	var req stageReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	return writeResult(c, h.Pipeline.UpdateStage(ctx, middleware.Credentials(c), req.ID, req.Stage), h.Secure)
}

// Delete reads the id from a JSON body, as browsers send DELETE with one.
func (h *ClientHandler) Delete(c echo.Context) error {
	var req deleteReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	return writeResult(c, h.Pipeline.Delete(ctx, middleware.Credentials(c), req.ClientID), h.Secure)
}
