package app

import (
	"context"

	"github.com/evanschultz/quadro/internal/domain"
)

// FetchTasks reloads the full collection from the persistence collaborator,
// merges it with local state, and makes filter the store's view:
//   - a fetch that finishes after a newer one already applied is discarded;
//   - a local copy written after this fetch started is kept;
//   - otherwise the later UpdatedAt wins, remote on ties;
//   - local-only tasks survive only if created after this fetch started;
//   - every lane is renumbered 1..N.
//
// The working set is never narrowed to the filter, so lane positions written
// afterwards stay contiguous against every persisted task. Mutations are not
// blocked while the fetch is in flight. On failure local state is untouched
// and a TransportError is returned. The returned tasks are the filtered view.
func (s *Store) FetchTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	s.fetchIssued++
	seq := s.fetchIssued
	startRev := s.revision
	s.mu.Unlock()

	if s.persist == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.view = filter
		return filterTasks(s.tasks, filter), nil
	}

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	s.logger.Debug("fetch start", "seq", seq, "revision", startRev, "filter", filter)

	remote, err := s.persist.LoadTasks(ctx, TaskFilter{})
	if err != nil {
		s.logger.Warn("fetch failed", "seq", seq, "err", err)
		return nil, &TransportError{Op: "fetch tasks", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if seq < s.fetchApplied {
		s.logger.Debug("fetch superseded", "seq", seq, "applied", s.fetchApplied)
		return filterTasks(s.tasks, filter), nil
	}

	merged, kept := s.mergeLocked(remote, startRev)
	s.fetchApplied = seq
	for id, rev := range s.touchedAt {
		if rev <= startRev {
			delete(s.touchedAt, id)
		}
	}
	for id, rev := range s.createdAt {
		if rev <= startRev {
			delete(s.createdAt, id)
		}
	}
	s.tasks = merged
	s.view = filter
	s.revision++
	s.wakeLocked()
	s.logger.Debug("fetch applied", "seq", seq, "remote", len(remote), "kept_local", kept, "total", len(merged))
	return filterTasks(merged, filter), nil
}

// mergeLocked reconciles remote against the current collection. Callers hold s.mu.
func (s *Store) mergeLocked(remote []domain.Task, startRev uint64) ([]domain.Task, int) {
	local := make(map[string]domain.Task, len(s.tasks))
	for _, t := range s.tasks {
		local[t.ID] = t
	}
	remoteIDs := make(map[string]struct{}, len(remote))
	kept := 0

	merged := make([]domain.Task, 0, len(remote)+len(s.tasks))
	// locally created tasks the remote has not seen lead, in collection order.
	for _, t := range s.tasks {
		if s.createdAt[t.ID] > startRev && !containsID(remote, t.ID) {
			merged = append(merged, t)
			kept++
		}
	}
	for _, r := range remote {
		if _, dup := remoteIDs[r.ID]; dup {
			continue
		}
		remoteIDs[r.ID] = struct{}{}
		l, ok := local[r.ID]
		switch {
		case !ok:
			merged = append(merged, r.Clone())
		case s.touchedAt[r.ID] > startRev:
			merged = append(merged, l)
			kept++
		case l.UpdatedAt.After(r.UpdatedAt):
			merged = append(merged, l)
			kept++
		default:
			merged = append(merged, r.Clone())
		}
	}
	return renumberLanes(merged), kept
}

// wakeLocked notifies subscribers of the current revision. Callers hold s.mu.
func (s *Store) wakeLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- s.revision:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.revision:
			default:
			}
		}
	}
}

func containsID(tasks []domain.Task, id string) bool {
	for _, t := range tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}
