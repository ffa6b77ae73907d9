// README: Group endpoints for drivers (accept, complete, listings).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/http/middleware"
	"carpool/internal/modules/group"
	"carpool/internal/types"
)

type GroupHandler struct {
	groups *group.Service
}

func NewGroupHandler(svc *group.Service) *GroupHandler {
	return &GroupHandler{groups: svc}
}

func (h *GroupHandler) Accept(c *gin.Context) {
	g, err := h.groups.Accept(c.Request.Context(), group.AcceptCommand{
		GroupID: types.ID(c.Param("id")),
		Caller:  middleware.Caller(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, g)
}

func (h *GroupHandler) Complete(c *gin.Context) {
	g, err := h.groups.Complete(c.Request.Context(), group.CompleteCommand{
		GroupID: types.ID(c.Param("id")),
		Caller:  middleware.Caller(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, g)
}

func (h *GroupHandler) Unassigned(c *gin.Context) {
	groups, err := h.groups.ListUnassigned(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, groups)
}

func (h *GroupHandler) Matched(c *gin.Context) {
	groups, err := h.groups.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, groups)
}

func (h *GroupHandler) DriverHistory(c *gin.Context) {
	groups, err := h.groups.DriverHistory(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, groups)
}
