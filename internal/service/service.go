// Package service implements the taxonomy use cases on top of the store:
// tree and tag management, hierarchical search, the suggestion moderation
// workflow, notifications and login.
package service

import (
	"context"

	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/sse"
)

// EventEmitter pushes events to live clients. *sse.Manager satisfies it.
type EventEmitter interface {
	Emit(event sse.Event) bool
}

// TagIndex is the full-text candidate index. *search.TagIndex satisfies it.
type TagIndex interface {
	CandidateIDs(ctx context.Context, q string, level domain.TagLevel, limit int) ([]string, error)
	IndexTag(t *domain.Tag) error
	Rebuild(tags []*domain.Tag) error
}

// storageErr passes domain errors through and wraps anything else as a
// STORAGE error.
func storageErr(err error, msg string) error {
	var domainErr *domainerrors.Error
	if domainerrors.As(err, &domainErr) {
		return domainErr
	}
	return domainerrors.Storage(err, msg)
}

// nopEmitter drops events. Used when no live stream is configured.
type nopEmitter struct{}

func (nopEmitter) Emit(sse.Event) bool { return true }

func emitterOrNop(e EventEmitter) EventEmitter {
	if e == nil {
		return nopEmitter{}
	}
	return e
}
