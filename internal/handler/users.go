package handler

import (
	"context"
	"errors"
	"net/http"

	"dukapos/internal/apierror"
	"dukapos/internal/dto"
	"dukapos/internal/middleware"
	"dukapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UsersHandler struct{ svc service.UserService }

func NewUsersHandler(svc service.UserService) *UsersHandler { return &UsersHandler{svc: svc} }

// List godoc
// @Summary      List users
// @Description  Returns users filtered by role and/or search term. Admin only.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        role   query string false "ADMIN | CUSTOMER"
// @Param        search query string false "Matches email or name"
// @Success      200 {array} dto.UserResponse
// @Router       /api/users [get]
func (h *UsersHandler) List(c *gin.Context) {
	var filter dto.UserFilter
	if !bindQueryAndValidate(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to list users"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Stats godoc
// @Summary      User statistics
// @Description  Totals by role plus signups over the last 30 days. Admin only.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.UserStatsResponse
// @Router       /api/users/stats [get]
func (h *UsersHandler) Stats(c *gin.Context) {
	resp, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to compute user stats"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Promote godoc
// @Summary      Promote a user to admin
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "User UUID"
// @Success      200 {object} dto.RoleChangeResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/users/{id}/promote [post]
func (h *UsersHandler) Promote(c *gin.Context) {
	h.changeRole(c, h.svc.Promote)
}

// Demote godoc
// @Summary      Demote an admin to customer
// @Description  Blocked for your own account and for the last remaining admin.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "User UUID"
// @Success      200 {object} dto.RoleChangeResponse
// @Failure      400 {object} apierror.APIError
// @Router       /api/users/{id}/demote [post]
func (h *UsersHandler) Demote(c *gin.Context) {
	h.changeRole(c, h.svc.Demote)
}

func (h *UsersHandler) changeRole(c *gin.Context, fn func(ctx context.Context, actorID, targetID uuid.UUID) (*dto.RoleChangeResponse, error)) {
	actorID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("Authentication required"))
		return
	}
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid user id"))
		return
	}

	resp, err := fn(c.Request.Context(), actorID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		case errors.Is(err, service.ErrSelfDemote), errors.Is(err, service.ErrLastAdmin):
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, apierror.New("Role change failed"))
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}
