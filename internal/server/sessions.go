package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskboard/internal/board"
	"taskboard/internal/models"
)

var errUnknownKind = errors.New("unknown task board")

type sessionKey struct {
	kind    models.TaskKind
	staffID string
}

// session is one viewer's board together with the inbox its notifications
// collect in between requests.
type session struct {
	board *board.Controller
	inbox *board.Inbox
	staff models.Staff

	// ready is closed once the first refresh finished; loadErr holds its error.
	ready   chan struct{}
	loadErr error
}

// wait blocks until the session's first load is done.
func (s *session) wait(ctx context.Context) (*session, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s, nil
}

// sessions keeps one live board per viewer and task kind.
type sessions struct {
	mu       sync.Mutex
	open     map[sessionKey]*session
	remotes  map[models.TaskKind]board.Remote
	journal  board.Journal
	logger   *slog.Logger
	inboxCap int
	now      func() time.Time
}

func newSessions(remotes map[models.TaskKind]board.Remote, journal board.Journal, logger *slog.Logger, inboxCap int, now func() time.Time) *sessions {
	return &sessions{
		open:     make(map[sessionKey]*session),
		remotes:  remotes,
		journal:  journal,
		logger:   logger,
		inboxCap: inboxCap,
		now:      now,
	}
}

// get returns the viewer's board, creating and loading it on first use. A
// changed role or park replaces the old board.
func (s *sessions) get(ctx context.Context, kind models.TaskKind, staff models.Staff) (*session, error) {
	remote, ok := s.remotes[kind]
	if !ok || remote == nil {
		return nil, fmt.Errorf("%w: %s", errUnknownKind, kind)
	}

	key := sessionKey{kind: kind, staffID: staff.ID}
	s.mu.Lock()
	if cur, ok := s.open[key]; ok {
		if cur.staff == staff && !cur.board.Closed() {
			s.mu.Unlock()
			return cur.wait(ctx)
		}
		cur.board.Close()
		delete(s.open, key)
	}

	inbox := board.NewInbox(s.inboxCap)
	ctrl, err := board.NewController(staff, board.Options{
		Kind:     kind,
		Remote:   remote,
		Journal:  s.journal,
		Notifier: inbox,
		Prompt:   entityPrompt(inbox),
		Logger:   s.logger,
		Now:      s.now,
	})
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sess := &session{board: ctrl, inbox: inbox, staff: staff, ready: make(chan struct{})}
	s.open[key] = sess
	s.mu.Unlock()

	err = ctrl.Refresh(ctx)
	sess.loadErr = err
	close(sess.ready)
	if err != nil {
		s.drop(key, sess)
		return nil, err
	}
	s.logger.Info("board session opened",
		slog.String("board", string(kind)),
		slog.String("staff_id", staff.ID),
		slog.String("role", string(staff.Role)))
	return sess, nil
}

// close ends the viewer's board, if any.
func (s *sessions) close(kind models.TaskKind, staffID string) bool {
	key := sessionKey{kind: kind, staffID: staffID}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.open[key]
	if !ok {
		return false
	}
	sess.board.Close()
	delete(s.open, key)
	return true
}

func (s *sessions) drop(key sessionKey, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.board.Close()
	if s.open[key] == sess {
		delete(s.open, key)
	}
}

// closeAll ends every board.
func (s *sessions) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sess := range s.open {
		sess.board.Close()
		delete(s.open, key)
	}
}

func (s *sessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// entityPrompt asks the viewer to update the faulty entity a task was raised
// against.
func entityPrompt(inbox *board.Inbox) board.EntityPrompt {
	return func(_ context.Context, task models.Task) {
		entity := task.FaultyEntity
		inbox.Notify(board.Notification{
			Level:   board.LevelPrompt,
			Message: fmt.Sprintf("Update the status of %s %s?", entity.Type, entity.ID),
			TaskID:  task.ID,
			Entity:  &entity,
		})
	}
}
