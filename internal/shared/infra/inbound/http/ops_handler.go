package http

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
	"github.com/davicafu/invoiceflow/pkg/utils"
)

// OutboxInspector es lo que la superficie de operación necesita del outbox de un módulo.
type OutboxInspector interface {
	CountPending(ctx context.Context) (int, error)
	List(ctx context.Context, limit, offset int) ([]sharedDomain.OutboxRecord, error)
}

type ModuleOutboxStatus struct {
	Module  string `json:"module"`
	Pending int    `json:"pending"`
}

// OpsHandler expone salud, métricas, outbox y dead-letters.
type OpsHandler struct {
	outboxes    map[string]OutboxInspector
	deadLetters sharedDomain.DeadLetterStore
	log         *zap.Logger
}

func NewOpsHandler(outboxes map[string]OutboxInspector, deadLetters sharedDomain.DeadLetterStore, log *zap.Logger) *OpsHandler {
	return &OpsHandler{outboxes: outboxes, deadLetters: deadLetters, log: log}
}

func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics sirve el registro por defecto de Prometheus.
func (h *OpsHandler) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// OutboxStatus endpoint GET /outbox
func (h *OpsHandler) OutboxStatus(c *gin.Context) {
	modules := make([]string, 0, len(h.outboxes))
	for m := range h.outboxes {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	out := make([]ModuleOutboxStatus, 0, len(modules))
	for _, m := range modules {
		n, err := h.outboxes[m].CountPending(c.Request.Context())
		if err != nil {
			h.log.Error("Failed to count pending outbox", zap.String("module", m), zap.Error(err))
			utils.SendInternalServerError(c, err.Error())
			return
		}
		out = append(out, ModuleOutboxStatus{Module: m, Pending: n})
	}
	utils.SendSuccess(c, http.StatusOK, out)
}

// OutboxRecords endpoint GET /outbox/:module?limit=&offset=
func (h *OpsHandler) OutboxRecords(c *gin.Context) {
	box, ok := h.outboxes[c.Param("module")]
	if !ok {
		utils.SendNotFound(c, "unknown module "+c.Param("module"))
		return
	}
	limit, offset := page(c)
	records, err := box.List(c.Request.Context(), limit, offset)
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, records)
}

// DeadLetters endpoint GET /dead-letters?limit=&offset=
func (h *OpsHandler) DeadLetters(c *gin.Context) {
	if h.deadLetters == nil {
		utils.SendSuccess(c, http.StatusOK, []sharedDomain.DeadLetter{})
		return
	}
	limit, offset := page(c)
	letters, err := h.deadLetters.List(c.Request.Context(), limit, offset)
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	if letters == nil {
		letters = []sharedDomain.DeadLetter{}
	}
	utils.SendSuccess(c, http.StatusOK, letters)
}

// page lee limit/offset de la query y los acota con la paginación compartida.
func page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	p := sharedQuery.OffsetPagination{Limit: limit, Offset: offset}.Normalize()
	return p.Limit, p.Offset
}
