package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/repositories"
)

// ErrDraftInvalidInput indicates the caller supplied an unusable draft or scope.
var ErrDraftInvalidInput = errors.New("draft service: invalid input")

// ErrDraftNotFound indicates the requested draft does not exist in scope.
var ErrDraftNotFound = errors.New("draft service: not found")

// ErrDraftUnavailable indicates a backing store could not be reached.
var ErrDraftUnavailable = errors.New("draft service: unavailable")

var (
	errLocalStoreRequired = errors.New("draft service: local store is required")
	errDraftClockRequired = errors.New("draft service: clock is required")
)

// DraftServiceDeps wires the two draft stores and ambient dependencies. The
// remote repository is optional: anonymous traffic only ever touches local.
type DraftServiceDeps struct {
	Local       repositories.LocalDraftStore
	Remote      repositories.DraftRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
	SyncFailure func() // metrics hook, counted once per failed draft
}

type draftService struct {
	local       repositories.LocalDraftStore
	remote      repositories.DraftRepository
	now         func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
	syncFailure func()
}

// NewDraftService constructs a DraftService enforcing dependency validation.
func NewDraftService(deps DraftServiceDeps) (DraftService, error) {
	if deps.Local == nil {
		return nil, errLocalStoreRequired
	}
	if deps.Clock == nil {
		return nil, errDraftClockRequired
	}

	newID := deps.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	syncFailure := deps.SyncFailure
	if syncFailure == nil {
		syncFailure = func() {}
	}

	return &draftService{
		local:       deps.Local,
		remote:      deps.Remote,
		now:         deps.Clock,
		newID:       newID,
		logger:      logger,
		syncFailure: syncFailure,
	}, nil
}

// List returns the drafts visible in the scope. Authenticated users read the
// remote store; anonymous devices read local.
func (s *draftService) List(ctx context.Context, scope DraftScope) ([]domain.OrderDraft, error) {
	if scope.UserID != "" && s.remote != nil {
		drafts, err := s.remote.ListByUser(ctx, scope.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDraftUnavailable, err)
		}
		return drafts, nil
	}
	if scope.DeviceID == "" {
		return nil, fmt.Errorf("%w: device id is required for anonymous access", ErrDraftInvalidInput)
	}
	drafts, err := s.local.List(ctx, scope.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDraftUnavailable, err)
	}
	return drafts, nil
}

// Get returns one draft from the scope's store.
func (s *draftService) Get(ctx context.Context, scope DraftScope, draftID string) (domain.OrderDraft, error) {
	if strings.TrimSpace(draftID) == "" {
		return domain.OrderDraft{}, fmt.Errorf("%w: draft id is required", ErrDraftInvalidInput)
	}
	if scope.UserID != "" && s.remote != nil {
		draft, err := s.remote.FindByID(ctx, scope.UserID, draftID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return domain.OrderDraft{}, ErrDraftNotFound
			}
			return domain.OrderDraft{}, fmt.Errorf("%w: %v", ErrDraftUnavailable, err)
		}
		return draft, nil
	}
	if scope.DeviceID == "" {
		return domain.OrderDraft{}, fmt.Errorf("%w: device id is required for anonymous access", ErrDraftInvalidInput)
	}
	drafts, err := s.local.List(ctx, scope.DeviceID)
	if err != nil {
		return domain.OrderDraft{}, fmt.Errorf("%w: %v", ErrDraftUnavailable, err)
	}
	for _, draft := range drafts {
		if draft.ID == draftID {
			return draft, nil
		}
	}
	return domain.OrderDraft{}, ErrDraftNotFound
}

// Save writes the draft to local storage. New drafts get an id and the
// Created state; previously synced drafts move to Updated so the next sync
// re-pushes them. Last write wins, there is no version check.
func (s *draftService) Save(ctx context.Context, scope DraftScope, draft domain.OrderDraft) (domain.OrderDraft, error) {
	if scope.DeviceID == "" {
		return domain.OrderDraft{}, fmt.Errorf("%w: device id is required", ErrDraftInvalidInput)
	}
	if err := validateDraft(draft); err != nil {
		return domain.OrderDraft{}, err
	}

	if strings.TrimSpace(draft.ID) == "" {
		draft.ID = s.newID()
		draft.SyncState = domain.DraftStateCreated
	} else if draft.SyncState == domain.DraftStateSynced {
		draft.SyncState = domain.DraftStateUpdated
	} else if draft.SyncState == "" {
		draft.SyncState = domain.DraftStateCreated
	}
	draft.SavedAt = s.now()

	if err := s.local.Put(ctx, scope.DeviceID, draft); err != nil {
		return domain.OrderDraft{}, fmt.Errorf("%w: %v", ErrDraftUnavailable, err)
	}
	return draft, nil
}

// Delete removes the draft locally right away. The remote copy is removed
// only for authenticated callers, and a remote failure does not undo the
// local delete.
func (s *draftService) Delete(ctx context.Context, scope DraftScope, draftID string) error {
	if strings.TrimSpace(draftID) == "" {
		return fmt.Errorf("%w: draft id is required", ErrDraftInvalidInput)
	}
	if scope.DeviceID == "" && scope.UserID == "" {
		return fmt.Errorf("%w: scope is required", ErrDraftInvalidInput)
	}

	var localErr error
	if scope.DeviceID != "" {
		localErr = s.local.Delete(ctx, scope.DeviceID, draftID)
		if localErr != nil && !repositories.IsNotFound(localErr) {
			return fmt.Errorf("%w: %v", ErrDraftUnavailable, localErr)
		}
	}

	if scope.UserID != "" && s.remote != nil {
		if err := s.remote.Delete(ctx, scope.UserID, draftID); err != nil && !repositories.IsNotFound(err) {
			s.logger(ctx, "draft.remote_delete_failed", map[string]any{
				"draft_id": draftID,
				"error":    err.Error(),
			})
		}
	}

	if localErr != nil && scope.UserID == "" {
		return ErrDraftNotFound
	}
	return nil
}

// Sync pushes every local draft to the remote store, then pulls the
// authoritative remote list back into local storage. Per-draft push failures
// are logged and counted but never abort the sibling drafts; the failed draft
// simply stays local-only until the next attempt.
func (s *draftService) Sync(ctx context.Context, scope DraftScope) (SyncReport, error) {
	if scope.UserID == "" {
		return SyncReport{}, fmt.Errorf("%w: sync requires an authenticated user", ErrDraftInvalidInput)
	}
	if scope.DeviceID == "" {
		return SyncReport{}, fmt.Errorf("%w: sync requires a device id", ErrDraftInvalidInput)
	}
	if s.remote == nil {
		return SyncReport{}, fmt.Errorf("%w: remote store not configured", ErrDraftUnavailable)
	}

	locals, err := s.local.List(ctx, scope.DeviceID)
	if err != nil {
		return SyncReport{}, fmt.Errorf("%w: %v", ErrDraftUnavailable, err)
	}

	report := SyncReport{Total: len(locals)}
	failedIDs := map[string]domain.OrderDraft{}
	for _, draft := range locals {
		if err := s.remote.Upsert(ctx, scope.UserID, draft); err != nil {
			s.syncFailure()
			s.logger(ctx, "draft.sync_push_failed", map[string]any{
				"draft_id": draft.ID,
				"error":    err.Error(),
			})
			report.Failed = append(report.Failed, draft.ID)
			failedIDs[draft.ID] = draft
			continue
		}
		report.Pushed++
	}

	remote, err := s.remote.ListByUser(ctx, scope.UserID)
	if err != nil {
		return report, fmt.Errorf("%w: pull after push: %v", ErrDraftUnavailable, err)
	}

	// Remote wins wholesale, except drafts whose push failed: those stay
	// local-only so the user's work is not discarded.
	merged := make([]domain.OrderDraft, 0, len(remote)+len(failedIDs))
	for _, draft := range remote {
		draft.SyncState = domain.DraftStateSynced
		merged = append(merged, draft)
	}
	for _, draft := range failedIDs {
		merged = append(merged, draft)
	}

	if err := s.local.Replace(ctx, scope.DeviceID, merged); err != nil {
		return report, fmt.Errorf("%w: refresh local: %v", ErrDraftUnavailable, err)
	}

	report.Drafts = merged
	return report, nil
}

func validateDraft(draft domain.OrderDraft) error {
	if !draft.ServiceType.Valid() {
		return fmt.Errorf("%w: unknown service type %q", ErrDraftInvalidInput, draft.ServiceType)
	}
	if strings.TrimSpace(draft.SourceCountryCode) == "" {
		return fmt.Errorf("%w: source country is required", ErrDraftInvalidInput)
	}
	for i, item := range draft.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d quantity must be at least 1", ErrDraftInvalidInput, i)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: item %d price cannot be negative", ErrDraftInvalidInput, i)
		}
	}
	return nil
}
