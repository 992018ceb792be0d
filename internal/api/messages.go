package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/store"
	"github.com/seantiz/cadence/internal/stream"
)

// messagesResponse is the JSON response for GET /v1/runs/{id}/messages.
type messagesResponse struct {
	RunID    string                `json:"run_id"`
	Messages []model.MessageRecord `json:"messages"`
}

// lookupRun writes the 404 or 500 response itself when it returns false.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request, id string) (*model.Run, bool) {
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get run", "run_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return nil, false
	}
	return run, true
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.lookupRun(w, r, id); !ok {
		return
	}

	records, err := s.store.GetMessages(r.Context(), id)
	if err != nil {
		s.logger.Error("get messages", "run_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}
	if records == nil {
		records = []model.MessageRecord{}
	}

	s.writeJSON(w, http.StatusOK, messagesResponse{RunID: id, Messages: records})
}

// handleStreamMessages replays a run's journal as server-sent events and then
// follows it live until the run finishes. Each event is named after the
// envelope type and carries the envelope JSON; the stream ends with "done".
func (s *Server) handleStreamMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := s.lookupRun(w, r, id)
	if !ok {
		return
	}

	// Subscribe before reading history so nothing published in between is
	// lost. Overlap is removed by sequence number.
	ch, unsub := s.broker.Subscribe(id)
	defer unsub()
	httpActiveStreams.Inc()
	defer httpActiveStreams.Dec()

	history, err := s.store.GetMessages(r.Context(), id)
	if err != nil {
		s.logger.Error("get messages for stream", "run_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flush := func() {
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			s.logger.Debug("flush SSE", "error", err)
		}
	}
	flush()

	next := 0
	for _, m := range history {
		if err := writeSSEMessage(w, m.Seq, m.Type, string(m.Payload)); err != nil {
			return
		}
		next = m.Seq + 1
	}
	if model.Terminal(run.Status) {
		// Finished before this request; the journal is complete.
		_ = writeSSEEvent(w, "done", "stream complete")
		flush()
		return
	}
	flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// Run finished; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "stream complete")
				flush()
				return
			}
			if ev.Seq < next {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				return // Write failed (e.g. client gone).
			}
			next = ev.Seq + 1
			flush()
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

func writeEvent(w http.ResponseWriter, ev stream.Event) error {
	return writeSSEMessage(w, ev.Seq, ev.Type, string(ev.Data))
}

// writeSSEMessage writes one journal entry with its sequence number as the
// SSE id.
func writeSSEMessage(w http.ResponseWriter, seq int, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "id: %s\n", strconv.Itoa(seq)); err != nil {
		return err
	}
	return writeSSEEvent(w, eventType, data)
}

// writeSSEEvent writes a named SSE event. Multi-line data is split so that
// each segment gets its own "data:" prefix.
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	for seg := range strings.SplitSeq(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}
