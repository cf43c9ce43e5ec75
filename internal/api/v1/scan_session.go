package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parcelbase/parcelbase/internal/api/dto"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/scanner"
)

// ScanSessionHandler drives scanner screens. Every action answers with the
// session snapshot so clients can render without a second request.
type ScanSessionHandler struct {
	sessions *scanner.Manager
	log      *logger.Logger
}

func NewScanSessionHandler(sessions *scanner.Manager, log *logger.Logger) *ScanSessionHandler {
	return &ScanSessionHandler{
		sessions: sessions,
		log:      log,
	}
}

// @Summary Open a scan session
// @Description Opens a scanner screen in single or bulk mode and starts its camera
// @Tags Scan Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateScanSessionRequest true "Session options"
// @Success 201 {object} dto.ScanSessionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /scan-sessions [post]
func (h *ScanSessionHandler) CreateSession(c *gin.Context) {
	var req dto.CreateScanSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	s, err := h.sessions.Create(c.Request.Context(), req.ToOptions())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, s.Snapshot())
}

// @Summary Get a scan session
// @Tags Scan Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.ScanSessionResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /scan-sessions/{id} [get]
func (h *ScanSessionHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// @Summary Push a decoded frame
// @Description Feeds text decoded on the device. Frames are dropped unless the session is scanning.
// @Tags Scan Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param request body dto.DecodeRequest true "Decoded frame"
// @Success 200 {object} dto.DecodeResponse
// @Router /scan-sessions/{id}/frames [post]
func (h *ScanSessionHandler) PushFrame(c *gin.Context) {
	var req dto.DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}

	outcome := s.Push(req.Text, req.Format)
	c.JSON(http.StatusOK, dto.DecodeResponse{
		Outcome: outcome,
		Session: s.Snapshot(),
	})
}

// @Summary Acknowledge a not-found result
// @Tags Scan Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.ScanSessionResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /scan-sessions/{id}/acknowledge [post]
func (h *ScanSessionHandler) Acknowledge(c *gin.Context) {
	h.act(c, (*scanner.Session).Acknowledge)
}

// @Summary Open the status picker
// @Tags Scan Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.StatusPickerResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /scan-sessions/{id}/picker [post]
func (h *ScanSessionHandler) OpenStatusPicker(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	next, err := s.OpenStatusPicker()
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.StatusPickerResponse{
		NextStatuses: next,
		Session:      s.Snapshot(),
	})
}

// @Summary Confirm a status change
// @Description Writes the chosen status for the package on screen
// @Tags Scan Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param request body dto.ConfirmStatusRequest true "Chosen status"
// @Success 200 {object} dto.ConfirmStatusResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /scan-sessions/{id}/confirm [post]
func (h *ScanSessionHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}

	result, err := s.Confirm(c.Request.Context(), scanner.ConfirmRequest{
		ToStatus: req.ToStatus,
		Note:     req.Note,
		Force:    req.Force,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ConfirmStatusResponse{
		Result:  result,
		Session: s.Snapshot(),
	})
}

// @Summary Cancel the current screen
// @Description Returns to scanning from the detail, picker or not-found screen
// @Tags Scan Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.ScanSessionResponse
// @Router /scan-sessions/{id}/cancel [post]
func (h *ScanSessionHandler) Cancel(c *gin.Context) {
	h.act(c, (*scanner.Session).Cancel)
}

// @Summary Retry the camera
// @Tags Scan Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.ScanSessionResponse
// @Router /scan-sessions/{id}/camera/retry [post]
func (h *ScanSessionHandler) RetryCamera(c *gin.Context) {
	h.act(c, (*scanner.Session).RetryCamera)
}

// @Summary Toggle the torch
// @Tags Scan Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param request body dto.TorchRequest true "Torch state"
// @Success 200 {object} dto.ScanSessionResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /scan-sessions/{id}/camera/torch [post]
func (h *ScanSessionHandler) SetTorch(c *gin.Context) {
	var req dto.TorchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	h.act(c, func(s *scanner.Session) error {
		return s.SetTorch(req.On)
	})
}

// @Summary Report a camera error
// @Description Reports a camera failure raised on the device, e.g. NotAllowedError
// @Tags Scan Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param request body dto.DeviceErrorRequest true "Device error"
// @Success 200 {object} dto.ScanSessionResponse
// @Router /scan-sessions/{id}/camera/error [post]
func (h *ScanSessionHandler) ReportDeviceError(c *gin.Context) {
	var req dto.DeviceErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	h.act(c, func(s *scanner.Session) error {
		s.ReportDeviceError(req.Name, req.Message)
		return nil
	})
}

// @Summary Close a scan session
// @Description Closes the session and releases its camera
// @Tags Scan Sessions
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 204
// @Router /scan-sessions/{id} [delete]
func (h *ScanSessionHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScanSessionHandler) session(c *gin.Context) (*scanner.Session, bool) {
	s, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return nil, false
	}
	return s, true
}

func (h *ScanSessionHandler) act(c *gin.Context, fn func(*scanner.Session) error) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}
