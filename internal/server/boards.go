package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/internal/board"
	"taskboard/internal/models"
)

const dateLayout = "2006-01-02"

type taskView struct {
	models.Task
	Overdue bool `json:"overdue"`
	DueSoon bool `json:"due_soon"`
}

type columnView struct {
	Status models.TaskStatus `json:"status"`
	Tasks  []taskView        `json:"tasks"`
}

type boardView struct {
	Kind          models.TaskKind      `json:"kind"`
	Viewer        models.Staff         `json:"viewer"`
	Columns       []columnView         `json:"columns"`
	LastRefresh   time.Time            `json:"last_refresh"`
	Notifications []board.Notification `json:"notifications"`
}

type moveRequest struct {
	TaskID      string          `json:"task_id" binding:"required"`
	Source      board.Location  `json:"source"`
	Destination *board.Location `json:"destination"`
}

// session resolves the caller's board for the :kind path parameter and
// writes the error response when that fails.
func (s *Server) session(c *gin.Context) (*session, bool) {
	kind, err := models.ParseKind(c.Param("kind"))
	if err != nil {
		s.respondError(c, http.StatusNotFound, fmt.Errorf("%w: %v", errUnknownKind, err), nil)
		return nil, false
	}
	sess, err := s.sessions.get(c.Request.Context(), kind, staffFrom(c))
	if err != nil {
		s.respondError(c, statusFor(err), err, nil)
		return nil, false
	}
	return sess, true
}

// handleGetBoard returns the caller's columns, optionally narrowed to tasks
// due between the from and to dates.
func (s *Server) handleGetBoard(c *gin.Context) {
	r, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err, nil)
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, s.view(sess, r))
}

func (s *Server) view(sess *session, r board.DateRange) boardView {
	now := s.now()
	v := boardView{
		Kind:          sess.board.Kind(),
		Viewer:        sess.board.Viewer(),
		LastRefresh:   sess.board.LastRefresh(),
		Notifications: drained(sess.inbox),
	}
	for _, status := range models.BoardStatuses {
		col := columnView{Status: status, Tasks: []taskView{}}
		for _, t := range sess.board.Column(status, r) {
			col.Tasks = append(col.Tasks, taskView{
				Task:    t,
				Overdue: t.Overdue(now),
				DueSoon: t.DueSoon(now, s.dueSoon),
			})
		}
		v.Columns = append(v.Columns, col)
	}
	return v
}

func parseRange(from, to string) (board.DateRange, error) {
	var r board.DateRange
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return r, fmt.Errorf("invalid from date %q", from)
		}
		r.From = &t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return r, fmt.Errorf("invalid to date %q", to)
		}
		r.To = &t
	}
	if (r.From == nil) != (r.To == nil) {
		return board.DateRange{}, fmt.Errorf("from and to dates must be given together")
	}
	if r.From != nil && r.To.Before(*r.From) {
		return r, fmt.Errorf("to date is before from date")
	}
	return r, nil
}

// handleRefresh reloads the caller's board from the park API.
func (s *Server) handleRefresh(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.board.Refresh(c.Request.Context()); err != nil {
		s.respondError(c, statusFor(err), err, nil)
		return
	}
	respondSuccess(c, http.StatusOK, s.view(sess, board.DateRange{}))
}

// handleMove applies a drag-and-drop result.
func (s *Server) handleMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err, nil)
		return
	}
	if _, err := models.ParseStatus(string(req.Source.Status)); err != nil {
		s.respondError(c, http.StatusBadRequest, err, nil)
		return
	}
	if req.Destination != nil {
		if _, err := models.ParseStatus(string(req.Destination.Status)); err != nil {
			s.respondError(c, http.StatusBadRequest, err, nil)
			return
		}
	}

	sess, ok := s.session(c)
	if !ok {
		return
	}
	err := sess.board.HandleDragEnd(c.Request.Context(), board.DropEvent{
		TaskID:      req.TaskID,
		Source:      req.Source,
		Destination: req.Destination,
	})
	s.respondAction(c, sess, err)
}

// handleNotifications drains the caller's pending notifications.
func (s *Server) handleNotifications(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"notifications": drained(sess.inbox)})
}

// handleCloseBoard ends the caller's board session.
func (s *Server) handleCloseBoard(c *gin.Context) {
	kind, err := models.ParseKind(c.Param("kind"))
	if err != nil {
		s.respondError(c, http.StatusNotFound, fmt.Errorf("%w: %v", errUnknownKind, err), nil)
		return
	}
	if !s.sessions.close(kind, staffFrom(c).ID) {
		s.respondError(c, http.StatusNotFound, fmt.Errorf("no open %s board", kind), nil)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

// respondAction reports a board action together with the notifications it
// produced.
func (s *Server) respondAction(c *gin.Context, sess *session, err error) {
	notes := drained(sess.inbox)
	if err != nil {
		s.respondError(c, statusFor(err), err, gin.H{"notifications": notes})
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"notifications": notes})
}

func drained(inbox *board.Inbox) []board.Notification {
	notes := inbox.Drain()
	if notes == nil {
		notes = []board.Notification{}
	}
	return notes
}
