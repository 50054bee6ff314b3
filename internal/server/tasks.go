package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type assignRequest struct {
	StaffID string `json:"staff_id"`
}

// handleChangeStatus moves a task to another column without a drag.
func (s *Server) handleChangeStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err, nil)
		return
	}
	to, err := models.ParseStatus(req.Status)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err, nil)
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.respondAction(c, sess, sess.board.ChangeStatus(c.Request.Context(), c.Param("id"), to))
}

// handleAssign assigns an open task, to the caller unless staff_id says
// otherwise.
func (s *Server) handleAssign(c *gin.Context) {
	var req assignRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, http.StatusBadRequest, err, nil)
			return
		}
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}
	staffID := req.StaffID
	if staffID == "" {
		staffID = sess.staff.ID
	}
	s.respondAction(c, sess, sess.board.Assign(c.Request.Context(), c.Param("id"), staffID))
}

// handleUnassign clears an open task's assignee.
func (s *Server) handleUnassign(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.respondAction(c, sess, sess.board.Unassign(c.Request.Context(), c.Param("id")))
}

// handleDeleteTask removes a task by id.
func (s *Server) handleDeleteTask(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.respondAction(c, sess, sess.board.Delete(c.Request.Context(), c.Param("id")))
}

// handleClearColumn deletes every task in a terminal column.
func (s *Server) handleClearColumn(c *gin.Context) {
	status, err := models.ParseStatus(c.Param("status"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err, nil)
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.respondAction(c, sess, sess.board.ClearColumn(c.Request.Context(), status))
}
