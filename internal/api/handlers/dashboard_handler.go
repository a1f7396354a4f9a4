package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/logistics-platform/booking-dashboard/internal/application"
	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/internal/infrastructure/clients"
	apperrors "github.com/logistics-platform/booking-dashboard/pkg/errors"
	"github.com/logistics-platform/booking-dashboard/pkg/logging"
	"github.com/logistics-platform/booking-dashboard/pkg/middleware"
)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// RegisterValidators installs the request validation tags used by the handlers
func RegisterValidators() error {
	validatorsOnce.Do(func() {
		custom := []struct {
			tag     string
			message string
			fn      validator.Func
		}{
			{"delivery_status", "must be a delivery status", func(fl validator.FieldLevel) bool {
				return domain.DeliveryStatus(fl.Field().String()).IsValid()
			}},
			{"report_type", "must be bookings or revenue", func(fl validator.FieldLevel) bool {
				return domain.ReportType(fl.Field().String()).IsSelectable()
			}},
			{"booking_status_filter", "must be all or a booking status", func(fl validator.FieldLevel) bool {
				switch domain.BookingStatus(fl.Field().String()) {
				case domain.BookingStatusPending, domain.BookingStatusInTransit, domain.BookingStatusDelivered,
					domain.BookingStatusDelayed, domain.BookingStatusAssigned:
					return true
				}
				return fl.Field().String() == domain.FilterAll
			}},
			{"transport_filter", "must be all, truck or train", func(fl validator.FieldLevel) bool {
				v := fl.Field().String()
				return v == domain.FilterAll || domain.TransportMode(v).IsValid()
			}},
			{"board_status_filter", "must be all or a delivery status", func(fl validator.FieldLevel) bool {
				return application.ValidFilter(fl.Field().String())
			}},
			{"role_filter", "must be all, customer, dispatcher or admin", func(fl validator.FieldLevel) bool {
				return application.ValidRoleFilter(fl.Field().String())
			}},
		}
		for _, v := range custom {
			if err := middleware.RegisterValidation(v.tag, v.message, v.fn); err != nil {
				validatorsErr = err
				return
			}
		}
	})
	return validatorsErr
}

// DashboardHandler serves the dashboard screens of the caller's session
type DashboardHandler struct {
	sessions *application.Sessions
	logger   *logging.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(sessions *application.Sessions, logger *logging.Logger) (*DashboardHandler, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	return &DashboardHandler{
		sessions: sessions,
		logger:   logger,
	}, nil
}

// RegisterRoutes registers the dashboard routes
func (h *DashboardHandler) RegisterRoutes(r *gin.RouterGroup) {
	// Admin
	r.GET("/dashboards/admin", h.GetAdminDashboard)
	r.POST("/dashboards/admin/refresh", h.RefreshAdminDashboard)

	// Customer
	r.GET("/dashboards/customer", h.GetCustomerDashboard)
	r.POST("/dashboards/customer/refresh", h.RefreshCustomerDashboard)

	// Dispatcher
	r.GET("/dashboards/dispatcher", h.GetDispatcherBoard)
	r.POST("/dashboards/dispatcher/refresh", h.RefreshDispatcherBoard)
	r.PATCH("/dashboards/dispatcher/deliveries/:id/status", h.UpdateDeliveryStatus)

	// Reports
	r.GET("/reports", h.GetReports)
	r.PUT("/reports/selection", h.UpdateReportSelection)
	r.POST("/reports/generate", h.GenerateReport)

	// Users
	r.GET("/users", h.GetUsers)
	r.POST("/users/refresh", h.RefreshUsers)

	r.DELETE("/session", h.CloseSession)
}

// open resolves the caller's session. Requests without a valid credential
// are answered with 401 and never reach a session.
func (h *DashboardHandler) open(c *gin.Context, responder *middleware.ErrorResponder) (*application.Session, credentials.Credential, bool) {
	cred := credential(c)
	s, err := h.sessions.Open(middleware.GetSessionID(c), cred)
	if err != nil {
		responder.RespondWithAppError(toAppError(err))
		return nil, cred, false
	}
	return s, cred, true
}

func credential(c *gin.Context) credentials.Credential {
	return credentials.New(middleware.GetBearerToken(c))
}

// toAppError maps screen and client errors onto API errors
func toAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, application.ErrEditSuperseded):
		return apperrors.ErrConflict("the board was refreshed since the edit began, reload and retry").Wrap(err)
	case errors.Is(err, application.ErrInvalidStatus), errors.Is(err, application.ErrInvalidRole):
		return apperrors.ErrValidation(err.Error()).Wrap(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.ErrTimeout("dashboard refresh").Wrap(err)
	}
	return clients.ToAppError(err)
}

// refreshFailed reports whether a refresh error should replace the snapshot
// response. Fetch failures are carried by the snapshot itself.
func refreshFailed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, credentials.ErrMissingCredential) ||
		errors.Is(err, credentials.ErrExpiredCredential) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// GetAdminDashboard handles GET /dashboards/admin
func (h *DashboardHandler) GetAdminDashboard(c *gin.Context) {
	h.adminDashboard(c, false)
}

// RefreshAdminDashboard handles POST /dashboards/admin/refresh
func (h *DashboardHandler) RefreshAdminDashboard(c *gin.Context) {
	h.adminDashboard(c, true)
}

func (h *DashboardHandler) adminDashboard(c *gin.Context, force bool) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	session, cred, ok := h.open(c, responder)
	if !ok {
		return
	}
	screen := session.Admin

	middleware.AddSpanAttributes(c, map[string]interface{}{
		"dashboard.screen": application.ScreenAdmin,
		"refresh.forced":   force,
	})

	if force || screen.Phase() == domain.PhaseIdle {
		if err := screen.Refresh(c.Request.Context(), cred); refreshFailed(err) {
			responder.RespondWithAppError(toAppError(err))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": screen.Snapshot()})
}

// GetCustomerDashboard handles GET /dashboards/customer
func (h *DashboardHandler) GetCustomerDashboard(c *gin.Context) {
	h.customerDashboard(c, false)
}

// RefreshCustomerDashboard handles POST /dashboards/customer/refresh
func (h *DashboardHandler) RefreshCustomerDashboard(c *gin.Context) {
	h.customerDashboard(c, true)
}

func (h *DashboardHandler) customerDashboard(c *gin.Context, force bool) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	session, cred, ok := h.open(c, responder)
	if !ok {
		return
	}
	screen := session.Customer

	middleware.AddSpanAttributes(c, map[string]interface{}{
		"dashboard.screen": application.ScreenCustomer,
		"refresh.forced":   force,
	})

	if force || screen.Phase() == domain.PhaseIdle {
		if err := screen.Refresh(c.Request.Context(), cred); refreshFailed(err) {
			responder.RespondWithAppError(toAppError(err))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": screen.Snapshot()})
}

// DispatcherQuery is the query of the dispatcher board routes
type DispatcherQuery struct {
	Status string `form:"status" json:"status" binding:"omitempty,board_status_filter"`
}

func (q DispatcherQuery) filter() string {
	if q.Status == "" {
		return domain.FilterAll
	}
	return q.Status
}

// GetDispatcherBoard handles GET /dashboards/dispatcher
func (h *DashboardHandler) GetDispatcherBoard(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	session, _, ok := h.open(c, responder)
	if !ok {
		return
	}

	var query DispatcherQuery
	if appErr := middleware.BindQueryAndValidate(c, &query); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	filter := query.filter()
	middleware.AddSpanAttributes(c, map[string]interface{}{
		"dashboard.screen": application.ScreenDispatcher,
		"filter.status":    filter,
	})

	snap, err := session.Dispatcher.Snapshot(filter)
	if err != nil {
		responder.RespondWithAppError(toAppError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snap})
}

// RefreshDispatcherBoard handles POST /dashboards/dispatcher/refresh
func (h *DashboardHandler) RefreshDispatcherBoard(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	session, _, ok := h.open(c, responder)
	if !ok {
		return
	}

	var query DispatcherQuery
	if appErr := middleware.BindQueryAndValidate(c, &query); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}
	filter := query.filter()

	board := session.Dispatcher
	if err := board.Refresh(c.Request.Context()); err != nil {
		responder.RespondWithAppError(toAppError(err))
		return
	}

	snap, err := board.Snapshot(filter)
	if err != nil {
		responder.RespondWithAppError(toAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snap})
}

// StatusUpdateRequest is the body of a delivery status edit. EditToken is the
// editToken of the board snapshot the edit was made against; without it the
// edit applies to the current board.
type StatusUpdateRequest struct {
	Status    string  `json:"status" binding:"required,delivery_status"`
	EditToken *uint64 `json:"editToken"`
}

// UpdateDeliveryStatus handles PATCH /dashboards/dispatcher/deliveries/:id/status
func (h *DashboardHandler) UpdateDeliveryStatus(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	session, _, ok := h.open(c, responder)
	if !ok {
		return
	}

	var req StatusUpdateRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	id := c.Param("id")
	middleware.AddSpanAttributes(c, map[string]interface{}{
		"dashboard.screen": application.ScreenDispatcher,
		"delivery.id":      id,
		"delivery.status":  req.Status,
	})

	board := session.Dispatcher
	status := domain.DeliveryStatus(req.Status)

	var err error
	if req.EditToken != nil {
		err = board.ApplyStatus(application.EditToken(*req.EditToken), id, status)
	} else {
		err = board.UpdateStatus(id, status)
	}
	if errors.Is(err, application.ErrDeliveryNotFound) {
		responder.RespondWithAppError(apperrors.ErrNotFoundWithID("delivery", id).Wrap(err))
		return
	}
	if err != nil {
		responder.RespondWithAppError(toAppError(err))
		return
	}

	snap, err := board.Snapshot(domain.FilterAll)
	if err != nil {
		responder.RespondWithAppError(toAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snap})
}

// GetReports handles GET /reports. The first visit generates the default report.
func (h *DashboardHandler) GetReports(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	session, cred, ok := h.open(c, responder)
	if !ok {
		return
	}
	screen := session.Reports

	if screen.Phase() == domain.PhaseIdle {
		if err := screen.Generate(c.Request.Context(), cred); refreshFailed(err) {
			responder.RespondWithAppError(toAppError(err))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": screen.Snapshot()})
}

// SelectionRequest is a partial update of the report selection. Dates use
// the YYYY-MM-DD form.
type SelectionRequest struct {
	ReportType *string `json:"reportType" binding:"omitempty,report_type"`
	Status     *string `json:"status" binding:"omitempty,booking_status_filter"`
	Transport  *string `json:"transport" binding:"omitempty,transport_filter"`
	DateFrom   *string `json:"dateFrom" binding:"omitempty,datetime=2006-01-02"`
	DateTo     *string `json:"dateTo" binding:"omitempty,datetime=2006-01-02"`
	ClearDates bool    `json:"clearDates"`
}

func (r SelectionRequest) toUpdate() application.SelectionUpdate {
	update := application.SelectionUpdate{
		StatusFilter:    r.Status,
		TransportFilter: r.Transport,
		ClearDates:      r.ClearDates,
	}
	if r.ReportType != nil {
		t := domain.ReportType(*r.ReportType)
		update.ReportType = &t
	}
	update.DateFrom = parseDate(r.DateFrom)
	update.DateTo = parseDate(r.DateTo)
	return update
}

func parseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil
	}
	return &t
}

// UpdateReportSelection handles PUT /reports/selection. Changing the report
// type fetches the new report before responding.
func (h *DashboardHandler) UpdateReportSelection(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	session, cred, ok := h.open(c, responder)
	if !ok {
		return
	}

	var req SelectionRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	screen := session.Reports
	err := screen.SetSelection(c.Request.Context(), cred, req.toUpdate())
	switch {
	case err == nil:
	case refreshFailed(err):
		responder.RespondWithAppError(toAppError(err))
		return
	case clients.IsNetworkError(err), isAPIError(err):
		// the snapshot carries the failure
	default:
		responder.RespondWithAppError(apperrors.ErrValidation(err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": screen.Snapshot()})
}

func isAPIError(err error) bool {
	var ae *clients.APIError
	return errors.As(err, &ae)
}

// GenerateReport handles POST /reports/generate
func (h *DashboardHandler) GenerateReport(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	session, cred, ok := h.open(c, responder)
	if !ok {
		return
	}
	screen := session.Reports

	if err := screen.Generate(c.Request.Context(), cred); refreshFailed(err) {
		responder.RespondWithAppError(toAppError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": screen.Snapshot()})
}

// UserQuery is the query of the user directory routes
type UserQuery struct {
	Search string `form:"search" json:"search"`
	Role   string `form:"role" json:"role" binding:"omitempty,role_filter"`
}

func (q UserQuery) role() string {
	if q.Role == "" {
		return domain.FilterAll
	}
	return q.Role
}

// GetUsers handles GET /users?search=&role=
func (h *DashboardHandler) GetUsers(c *gin.Context) {
	h.users(c, false)
}

// RefreshUsers handles POST /users/refresh
func (h *DashboardHandler) RefreshUsers(c *gin.Context) {
	h.users(c, true)
}

func (h *DashboardHandler) users(c *gin.Context, force bool) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	session, cred, ok := h.open(c, responder)
	if !ok {
		return
	}
	screen := session.Users

	var query UserQuery
	if appErr := middleware.BindQueryAndValidate(c, &query); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}
	search, role := query.Search, query.role()

	middleware.AddSpanAttributes(c, map[string]interface{}{
		"dashboard.screen": application.ScreenUsers,
		"filter.role":      role,
	})

	if force || screen.Phase() == domain.PhaseIdle {
		if err := screen.Refresh(c.Request.Context(), cred); refreshFailed(err) {
			responder.RespondWithAppError(toAppError(err))
			return
		}
	}

	snap, err := screen.Snapshot(search, role)
	if err != nil {
		responder.RespondWithAppError(toAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snap})
}

// CloseSession handles DELETE /session
func (h *DashboardHandler) CloseSession(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	closed, err := h.sessions.Release(middleware.GetSessionID(c), credential(c))
	if err != nil {
		responder.RespondWithAppError(toAppError(err))
		return
	}
	if !closed {
		responder.RespondNotFound("session")
		return
	}

	h.logger.WithContext(c.Request.Context()).Info("Session closed")
	c.Status(http.StatusNoContent)
}
