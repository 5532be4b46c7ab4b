package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/fieldserve/comms-gateway/internal/model"
	xhttp "github.com/fieldserve/comms-gateway/pkg/http"
)

type CommunicationService interface {
	SendEmail(ctx context.Context, p model.EmailSendRequest) (*model.Communication, error)
	List(ctx context.Context, f model.CommunicationFilter) ([]*model.Communication, int64, error)
}

type CommunicationHandler struct {
	svc CommunicationService
}

func RegisterCommunicationRoutes(e *router.Group, h *CommunicationHandler) {
	e.POST("/communications/email", h.SendEmail)
	e.GET("/communications", h.ListCommunications)
}

func NewCommunicationHandler(svc CommunicationService) *CommunicationHandler {
	return &CommunicationHandler{
		svc: svc,
	}
}

type sendEmailRequest struct {
	CompanyID  int64  `json:"company_id"`
	CustomerID *int64 `json:"customer_id,omitempty"`
	To         string `json:"to"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	Text       string `json:"text"`
	HTML       string `json:"html"`
}

type listResponse struct {
	Items []*model.Communication `json:"items"`
	Total int64                  `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CommunicationHandler) SendEmail(ctx *xhttp.RequestCtx) {
	var req sendEmailRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	p := model.EmailSendRequest{
		CompanyID:  req.CompanyID,
		CustomerID: req.CustomerID,
		To:         req.To,
		From:       req.From,
		Subject:    req.Subject,
		Text:       req.Text,
		HTML:       req.HTML,
	}
	comm, err := h.svc.SendEmail(ctx, p)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, comm)
}

func (h *CommunicationHandler) ListCommunications(ctx *xhttp.RequestCtx) {
	var f model.CommunicationFilter

	if v := query(ctx, "company_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CompanyID = &id
		}
	}
	if v := query(ctx, "customer_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CustomerID = &id
		}
	}
	if v := query(ctx, "direction"); v != "" {
		d := model.Direction(v)
		f.Direction = &d
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.CommunicationStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, listResponse{Items: items, Total: total})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
