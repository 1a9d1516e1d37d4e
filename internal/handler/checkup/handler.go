package checkup

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/repository"
	"github.com/renalcare/capd-api/internal/service/checkup"
	"github.com/renalcare/capd-api/internal/service/missed"
	"github.com/renalcare/capd-api/internal/service/reschedule"
	apperrors "github.com/renalcare/capd-api/pkg/errors"
	"github.com/renalcare/capd-api/pkg/httputil"
	"github.com/renalcare/capd-api/pkg/metrics"
)

const missedReportCacheKey = "missed_report"

// Handler exposes the checkup lifecycle over HTTP: appointment CRUD, the
// missed report and batch rescheduling. The missed report is cached briefly
// since staff dashboards poll it.
type Handler struct {
	checkups    *checkup.Service
	detector    *missed.Service
	rescheduler *reschedule.Service
	metrics     *metrics.Metrics
	reportCache *cache.Cache
}

func NewHandler(
	checkups *checkup.Service,
	detector *missed.Service,
	rescheduler *reschedule.Service,
	m *metrics.Metrics,
	reportTTL time.Duration,
) *Handler {
	if reportTTL <= 0 {
		reportTTL = time.Minute
	}
	return &Handler{
		checkups:    checkups,
		detector:    detector,
		rescheduler: rescheduler,
		metrics:     m,
		reportCache: cache.New(reportTTL, 2*reportTTL),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/appointments", h.CreateAppointment)
	r.GET("/appointments/:id", h.GetAppointment)
	r.POST("/appointments/:id/confirm", h.ConfirmAppointment)
	r.POST("/appointments/:id/complete", h.CompleteAppointment)
	r.POST("/appointments/:id/reschedule-request", h.RequestReschedule)

	r.GET("/missed-appointments", h.GetMissedAppointments)
	r.POST("/reschedule-missed-batch", h.RescheduleMissedBatch)
	r.POST("/approve-reschedule", h.ApproveReschedule)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	apt, err := h.checkups.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}
	h.reportCache.Delete(missedReportCacheKey)

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	apt, err := h.checkups.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) ConfirmAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	if err := h.checkups.Confirm(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"confirmed": true})
}

type completeRequest struct {
	Remarks *string `json:"remarks"`
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	// an empty body just means no remarks
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	followUp, err := h.checkups.Complete(c.Request.Context(), id, req.Remarks)
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}
	h.reportCache.Delete(missedReportCacheKey)

	httputil.RespondWithSuccess(c, gin.H{"completed": true, "follow_up": followUp})
}

type rescheduleRequestBody struct {
	RequestedDate string `json:"requested_date" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
}

func (h *Handler) RequestReschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	var req rescheduleRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	date, err := time.Parse(model.DateFormat, req.RequestedDate)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid requested date", err))
		return
	}

	request, err := h.rescheduler.RequestReschedule(c.Request.Context(), id, date, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}

	httputil.RespondWithSuccess(c, request)
}

// GetMissedAppointments returns the live missed report, served from a short
// lived cache because it is recomputed from the store on every miss.
func (h *Handler) GetMissedAppointments(c *gin.Context) {
	if cached, ok := h.reportCache.Get(missedReportCacheKey); ok {
		httputil.RespondWithSuccess(c, cached)
		return
	}

	report, err := h.detector.Detect(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}
	h.reportCache.SetDefault(missedReportCacheKey, report)

	httputil.RespondWithSuccess(c, report)
}

func (h *Handler) RescheduleMissedBatch(c *gin.Context) {
	var req model.BatchRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	result, err := h.rescheduler.RescheduleBatch(c.Request.Context(), req.ScheduleIDs)
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}
	h.reportCache.Delete(missedReportCacheKey)

	h.metrics.ReschedulesSucceeded.Add(float64(len(result.Succeeded)))
	h.metrics.ReschedulesFailed.Add(float64(len(result.Failed)))

	httputil.RespondWithSuccess(c, result.Response())
}

func (h *Handler) ApproveReschedule(c *gin.Context) {
	var req model.DecideRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	request, err := h.rescheduler.DecideRequest(c.Request.Context(), req.ScheduleID, req.Approve)
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}
	h.reportCache.Delete(missedReportCacheKey)

	httputil.RespondWithSuccess(c, request)
}

// serviceError maps repository sentinels onto API error codes.
func serviceError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("appointment", err)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.Conflict("appointment was modified concurrently", err)
	default:
		return apperrors.BadRequest(err.Error(), err)
	}
}
