package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
	"taskboard/internal/storage/journal"
)

// handleListMoves returns recent journal entries. Privileged staff see every
// actor, everyone else only their own moves.
func (s *Server) handleListMoves(c *gin.Context) {
	if s.journal == nil {
		s.respondError(c, http.StatusServiceUnavailable, errors.New("move journal is disabled"), nil)
		return
	}

	f := journal.Filter{
		TaskID:  c.Query("task_id"),
		ActorID: c.Query("actor_id"),
	}
	if raw := c.Query("kind"); raw != "" {
		kind, err := models.ParseKind(raw)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err, nil)
			return
		}
		f.Kind = kind
	}
	if raw := c.Query("outcome"); raw != "" {
		switch o := models.MoveOutcome(raw); o {
		case models.OutcomeApplied, models.OutcomeRejected, models.OutcomeRolledBack:
			f.Outcome = o
		default:
			s.respondError(c, http.StatusBadRequest, errors.New("invalid outcome"), nil)
			return
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.respondError(c, http.StatusBadRequest, errors.New("invalid limit"), nil)
			return
		}
		f.Limit = limit
	}

	staff := staffFrom(c)
	if !staff.Role.Privileged() {
		f.ActorID = staff.ID
	}

	moves, err := s.journal.ListMoves(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err, nil)
		return
	}
	if moves == nil {
		moves = []models.MoveRecord{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"moves": moves})
}
