package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hostyard/hostyard/internal/models"
	"github.com/hostyard/hostyard/internal/service"
	"github.com/hostyard/hostyard/internal/types"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type createHostRequest struct {
	Name        string `json:"name"`
	DaemonURL   string `json:"daemon_url"`
	Capacity    *int   `json:"capacity"`
	LogLevel    string `json:"log_level"`
	LogType     string `json:"log_type"`
	LogServer   string `json:"log_server"`
	Schedulable bool   `json:"schedulable"`
	Fillup      bool   `json:"fillup"`
}

type updateHostRequest struct {
	Name        *string `json:"name"`
	DaemonURL   *string `json:"daemon_url"`
	Capacity    *int    `json:"capacity"`
	LogLevel    *string `json:"log_level"`
	LogType     *string `json:"log_type"`
	LogServer   *string `json:"log_server"`
	Schedulable *bool   `json:"schedulable"`
}

type listHostsResponse struct {
	Count int            `json:"count"`
	Hosts []*models.Host `json:"hosts"`
}

// writeServiceError translates a service error into the matching HTTP
// response.
func (s *Server) writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrHostNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrDuplicateDaemonURL),
		errors.Is(err, service.ErrHostInactive),
		errors.Is(err, service.ErrCapacityTooSmall),
		errors.Is(err, service.ErrClustersPresent):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrDaemonSetup),
		errors.Is(err, service.ErrDaemonReset),
		errors.Is(err, service.ErrProvisionFailed):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("Unhandled service error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// createHost handles POST /api/v1/hosts
func (s *Server) createHost(c echo.Context) error {
	var req createHostRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Details: err.Error()})
	}

	// One slot unless the caller says otherwise
	capacity := 1
	if req.Capacity != nil {
		capacity = *req.Capacity
	}

	host, err := s.hosts.Create(c.Request().Context(), service.CreateHostParams{
		Name:        req.Name,
		DaemonURL:   req.DaemonURL,
		Capacity:    capacity,
		LogLevel:    req.LogLevel,
		LogType:     req.LogType,
		LogServer:   req.LogServer,
		Schedulable: req.Schedulable,
		Fillup:      req.Fillup,
	})
	if err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, host)
}

// listHosts handles GET /api/v1/hosts
func (s *Server) listHosts(c echo.Context) error {
	var filter models.HostFilter

	if name := c.QueryParam("name"); name != "" {
		filter.Name = &name
	}
	if daemonURL := c.QueryParam("daemon_url"); daemonURL != "" {
		filter.DaemonURL = &daemonURL
	}
	if status := c.QueryParam("status"); status != "" {
		v := models.Status(status)
		filter.Status = &v
	}
	if daemonType := c.QueryParam("type"); daemonType != "" {
		v := models.DaemonType(daemonType)
		filter.Type = &v
	}
	if schedulable := c.QueryParam("schedulable"); schedulable != "" {
		v, err := strconv.ParseBool(schedulable)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid schedulable value", Details: err.Error()})
		}
		filter.Schedulable = &v
	}

	hosts, err := s.hosts.List(c.Request().Context(), filter)
	if err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, listHostsResponse{Count: len(hosts), Hosts: hosts})
}

// getHost handles GET /api/v1/hosts/:id
func (s *Server) getHost(c echo.Context) error {
	host, err := s.hosts.GetByID(c.Request().Context(), types.HostID(c.Param("id")))
	if err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, host)
}

// updateHost handles PUT /api/v1/hosts/:id
func (s *Server) updateHost(c echo.Context) error {
	var req updateHostRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Details: err.Error()})
	}

	host, err := s.hosts.Update(c.Request().Context(), types.HostID(c.Param("id")), service.UpdateHostParams{
		Name:        req.Name,
		DaemonURL:   req.DaemonURL,
		Capacity:    req.Capacity,
		LogLevel:    req.LogLevel,
		LogType:     req.LogType,
		LogServer:   req.LogServer,
		Schedulable: req.Schedulable,
	})
	if err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, host)
}

// deleteHost handles DELETE /api/v1/hosts/:id
func (s *Server) deleteHost(c echo.Context) error {
	if err := s.hosts.Delete(c.Request().Context(), types.HostID(c.Param("id"))); err != nil {
		return s.writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// fillupHost handles POST /api/v1/hosts/:id/fillup
func (s *Server) fillupHost(c echo.Context) error {
	if err := s.hosts.Fillup(c.Request().Context(), types.HostID(c.Param("id"))); err != nil {
		return s.writeServiceError(c, err)
	}
	// Launches keep running after the response
	return c.JSON(http.StatusAccepted, statusResponse{Status: "fillup dispatched"})
}

// cleanHost handles POST /api/v1/hosts/:id/clean
func (s *Server) cleanHost(c echo.Context) error {
	if err := s.hosts.Clean(c.Request().Context(), types.HostID(c.Param("id"))); err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusAccepted, statusResponse{Status: "clean dispatched"})
}

// resetHost handles POST /api/v1/hosts/:id/reset
func (s *Server) resetHost(c echo.Context) error {
	if err := s.hosts.Reset(c.Request().Context(), types.HostID(c.Param("id"))); err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "reset"})
}

// refreshHost handles POST /api/v1/hosts/:id/refresh
func (s *Server) refreshHost(c echo.Context) error {
	host, err := s.hosts.RefreshStatus(c.Request().Context(), types.HostID(c.Param("id")))
	if err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, host)
}
