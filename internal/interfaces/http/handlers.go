package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/application/service"
	"github.com/garyjia/conveyance-bills/internal/domain/tripguard"
	"github.com/garyjia/conveyance-bills/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	users       service.UserService
	bills       service.BillService
	attachments service.AttachmentService
	health      HealthFunc
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		users:       services.Users,
		bills:       services.Bills,
		attachments: services.Attachments,
		health:      services.Health,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Version   string      `json:"version"`
	Details   interface{} `json:"details,omitempty"`
}

// PendingCountResponse is the body of GET /api/bills/pending-count
type PendingCountResponse struct {
	Count int `json:"count"`
}

// CommentRequest is the optional body of the payment endpoints
type CommentRequest struct {
	Comment string `json:"comment"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	status := http.StatusOK
	if h.health != nil {
		healthy, details := h.health(c.Request.Context())
		response.Details = details
		if !healthy {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// RegisterUser handles POST /api/users
func (h *Handlers) RegisterUser(c *gin.Context) {
	var req service.RegisterInput
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "register user", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: user})
}

// GetMe handles GET /api/users/me
func (h *Handlers) GetMe(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), mustActor(c).ID)
	if err != nil {
		h.writeError(c, "get user", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: user})
}

// UpdateMe handles PATCH /api/users/me
func (h *Handlers) UpdateMe(c *gin.Context) {
	var req service.ProfileInput
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), mustActor(c), req)
	if err != nil {
		h.writeError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: user})
}

// ListSupervisors handles GET /api/supervisors
func (h *Handlers) ListSupervisors(c *gin.Context) {
	users, err := h.users.ListSupervisors(c.Request.Context())
	if err != nil {
		h.writeError(c, "list supervisors", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: users})
}

// ListReports handles GET /api/users/me/reports
func (h *Handlers) ListReports(c *gin.Context) {
	users, err := h.users.ListDirectReports(c.Request.Context(), mustActor(c))
	if err != nil {
		h.writeError(c, "list direct reports", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: users})
}

// ListBills handles GET /api/bills
func (h *Handlers) ListBills(c *gin.Context) {
	bills, err := h.bills.List(c.Request.Context(), mustActor(c))
	if err != nil {
		h.writeError(c, "list bills", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: bills})
}

// ListDrafts handles GET /api/bills/drafts
func (h *Handlers) ListDrafts(c *gin.Context) {
	bills, err := h.bills.ListDrafts(c.Request.Context(), mustActor(c))
	if err != nil {
		h.writeError(c, "list drafts", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: bills})
}

// PendingCount handles GET /api/bills/pending-count
func (h *Handlers) PendingCount(c *gin.Context) {
	n, err := h.bills.PendingCount(c.Request.Context(), mustActor(c))
	if err != nil {
		h.writeError(c, "count pending bills", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: PendingCountResponse{Count: n}})
}

// GetBill handles GET /api/bills/:id
func (h *Handlers) GetBill(c *gin.Context) {
	detail, err := h.bills.Get(c.Request.Context(), mustActor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "get bill", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// CreateDraft handles POST /api/bills/drafts
func (h *Handlers) CreateDraft(c *gin.Context) {
	var req service.DraftInput
	if !h.bindJSON(c, &req) {
		return
	}

	bill, err := h.bills.SaveDraft(c.Request.Context(), mustActor(c), req)
	if err != nil {
		h.writeError(c, "save draft", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: bill})
}

// UpdateDraft handles PUT /api/bills/:id/draft
func (h *Handlers) UpdateDraft(c *gin.Context) {
	var req service.DraftInput
	if !h.bindJSON(c, &req) {
		return
	}
	req.BillID = c.Param("id")

	bill, err := h.bills.SaveDraft(c.Request.Context(), mustActor(c), req)
	if err != nil {
		h.writeError(c, "save draft", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: bill})
}

// SubmitNew handles POST /api/bills/submit
func (h *Handlers) SubmitNew(c *gin.Context) {
	var req service.DraftInput
	if !h.bindJSON(c, &req) {
		return
	}

	bill, err := h.bills.Submit(c.Request.Context(), mustActor(c), req)
	if err != nil {
		h.writeError(c, "submit bill", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: bill})
}

// SubmitExisting handles POST /api/bills/:id/submit. The body is optional;
// without one the bill is submitted as saved.
func (h *Handlers) SubmitExisting(c *gin.Context) {
	var req service.DraftInput
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	req.BillID = c.Param("id")

	bill, err := h.bills.Submit(c.Request.Context(), mustActor(c), req)
	if err != nil {
		h.writeError(c, "submit bill", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: bill})
}

// Act handles POST /api/bills/:id/actions
func (h *Handlers) Act(c *gin.Context) {
	var req service.ActionInput
	if !h.bindJSON(c, &req) {
		return
	}

	bill, err := h.bills.Act(c.Request.Context(), mustActor(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, "act on bill", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: bill})
}

// RequestPayment handles POST /api/bills/:id/payment-request
func (h *Handlers) RequestPayment(c *gin.Context) {
	var req CommentRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	bill, err := h.bills.RequestPayment(c.Request.Context(), mustActor(c), c.Param("id"), req.Comment)
	if err != nil {
		h.writeError(c, "request payment", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: bill})
}

// ConfirmPayment handles POST /api/bills/:id/payment-confirm
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	var req CommentRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	bill, err := h.bills.ConfirmPayment(c.Request.Context(), mustActor(c), c.Param("id"), req.Comment)
	if err != nil {
		h.writeError(c, "confirm payment", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: bill})
}

// DeleteBill handles DELETE /api/bills/:id
func (h *Handlers) DeleteBill(c *gin.Context) {
	if err := h.bills.DeleteDraft(c.Request.Context(), mustActor(c), c.Param("id")); err != nil {
		h.writeError(c, "delete bill", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// UploadAttachment handles POST /api/attachments (multipart field "file")
func (h *Handlers) UploadAttachment(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "file is required"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable file"})
		return
	}
	defer f.Close()

	attachment, err := h.attachments.Upload(c.Request.Context(), mustActor(c), service.UploadInput{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     f,
	})
	if err != nil {
		h.writeError(c, "upload attachment", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: attachment})
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body
func (h *Handlers) bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps application errors to status codes
func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	status := statusFor(err)

	var dup *tripguard.DuplicateTripError
	if errors.As(err, &dup) {
		c.JSON(status, Response{Success: false, Data: dup, Error: dup.Error()})
		return
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Failed to "+op, "error", err)
		c.JSON(status, Response{Success: false, Error: "internal server error"})
		return
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotASupervisor), errors.Is(err, workflow.ErrInvalidForwardTarget):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrNoApprover),
		errors.Is(err, service.ErrNotEditable),
		errors.Is(err, tripguard.ErrDuplicateTrip),
		errors.Is(err, port.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
