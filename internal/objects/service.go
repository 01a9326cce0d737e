package objects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crucible-ti/crucible/internal/access"
	"github.com/crucible-ti/crucible/internal/audit"
	"github.com/crucible-ti/crucible/internal/platform/cache"
)

// ErrUnknownType indicates a type name outside the registry.
var ErrUnknownType = errors.New("objects: unknown object type")

// ErrInvalidProvenance indicates a rejected provenance entry.
var ErrInvalidProvenance = errors.New("objects: invalid provenance")

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Store is the persistence surface the service depends on. Implemented
// by Repository; tests substitute a fake.
type Store interface {
	GetVisible(ctx context.Context, scope *access.Scope, typeName, id string) (Object, error)
	ListVisible(ctx context.Context, scope *access.Scope, typeName string, params ListParams) ([]Object, error)
	CountVisible(ctx context.Context, scope *access.Scope, typeName string) (int64, error)
	Insert(ctx context.Context, obj Object) error
	UpdateFields(ctx context.Context, typeName, id string, fields map[string]any) error
	Delete(ctx context.Context, typeName, id string) error
	AppendProvenance(ctx context.Context, typeName, id string, entry access.ProvenanceEntry) error
	InsertComment(ctx context.Context, comment Comment) (Comment, error)
	ListComments(ctx context.Context, objectID string) ([]Comment, error)
}

// Service implements the object operations. Reads go through the cache
// keyed by the caller's scope fingerprint; every write to a type bumps
// that type's cache epoch, so readers observe the write on their next
// request regardless of remaining TTL.
type Service struct {
	store  Store
	cache  *cache.Store
	audit  *audit.Logger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, cacheStore *cache.Store, auditLogger *audit.Logger, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cacheStore, audit: auditLogger, logger: logger}
}

// cacheOp scopes one invalidation epoch per object type. Get, list and
// comment reads of a type share the epoch, so any write to the type
// invalidates them all at once.
func cacheOp(typeName string) string {
	return "objects." + typeName
}

// Get returns one object under the caller's scope. An object the scope
// cannot see and an object that does not exist produce the same
// forbidden error.
func (s *Service) Get(ctx context.Context, typeName, id string) (Object, error) {
	if _, ok := Lookup(typeName); !ok {
		return Object{}, ErrUnknownType
	}
	if err := access.CheckPermission(ctx, access.ReadPermission(typeName)); err != nil {
		return Object{}, err
	}
	scope := access.ScopeFromContext(ctx)

	var obj Object
	params := map[string]any{"action": "get", "id": id}
	err := s.cache.GetOrCompute(ctx, cacheOp(typeName), params, scope.Fingerprint(), &obj,
		func(ctx context.Context) (any, error) {
			return s.store.GetVisible(ctx, scope, typeName, id)
		})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Object{}, access.ErrForbidden
		}
		return Object{}, err
	}
	return obj, nil
}

// List returns a page of visible objects with a scope-correct total.
func (s *Service) List(ctx context.Context, typeName string, params ListParams) (ListResult, error) {
	if _, ok := Lookup(typeName); !ok {
		return ListResult{}, ErrUnknownType
	}
	if err := access.CheckPermission(ctx, access.ReadPermission(typeName)); err != nil {
		return ListResult{}, err
	}
	scope := access.ScopeFromContext(ctx)

	if params.Limit <= 0 {
		params.Limit = defaultPageSize
	}
	if params.Limit > maxPageSize {
		params.Limit = maxPageSize
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	var result ListResult
	cacheParams := map[string]any{"action": "list", "limit": params.Limit, "offset": params.Offset}
	err := s.cache.GetOrCompute(ctx, cacheOp(typeName), cacheParams, scope.Fingerprint(), &result,
		func(ctx context.Context) (any, error) {
			items, err := s.store.ListVisible(ctx, scope, typeName, params)
			if err != nil {
				return nil, err
			}
			total, err := s.store.CountVisible(ctx, scope, typeName)
			if err != nil {
				return nil, err
			}
			return ListResult{Items: items, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
		})
	return result, err
}

// Create stores a new object. Each provenance entry must name a group
// the actor can see at or above the entry's classification, so nobody
// can publish data they could not themselves read back.
func (s *Service) Create(ctx context.Context, typeName string, fields map[string]any, provenance []access.ProvenanceEntry) (Object, error) {
	if _, ok := Lookup(typeName); !ok {
		return Object{}, ErrUnknownType
	}
	if err := access.CheckPermission(ctx, access.WritePermission(typeName)); err != nil {
		return Object{}, err
	}
	scope := access.ScopeFromContext(ctx)

	if len(provenance) == 0 {
		return Object{}, fmt.Errorf("%w: at least one entry required", ErrInvalidProvenance)
	}
	for i := range provenance {
		if err := s.checkEntry(scope, &provenance[i]); err != nil {
			return Object{}, err
		}
	}

	now := time.Now().UTC()
	obj := Object{
		ID:         uuid.NewString(),
		Type:       typeName,
		Fields:     fields,
		Provenance: provenance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Insert(ctx, obj); err != nil {
		return Object{}, err
	}
	s.afterWrite(ctx, typeName, "create", obj.ID, nil)
	return obj, nil
}

// Update replaces an object's payload. The caller must be able to see
// the object under its current provenance.
func (s *Service) Update(ctx context.Context, typeName, id string, fields map[string]any) (Object, error) {
	if _, ok := Lookup(typeName); !ok {
		return Object{}, ErrUnknownType
	}
	if err := access.CheckPermission(ctx, access.WritePermission(typeName)); err != nil {
		return Object{}, err
	}
	scope := access.ScopeFromContext(ctx)

	obj, err := s.store.GetVisible(ctx, scope, typeName, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Object{}, access.ErrForbidden
		}
		return Object{}, err
	}
	if err := s.store.UpdateFields(ctx, typeName, id, fields); err != nil {
		return Object{}, err
	}
	obj.Fields = fields
	s.afterWrite(ctx, typeName, "update", id, nil)
	return obj, nil
}

// Delete removes a visible object.
func (s *Service) Delete(ctx context.Context, typeName, id string) error {
	if _, ok := Lookup(typeName); !ok {
		return ErrUnknownType
	}
	if err := access.CheckPermission(ctx, access.DeletePermission(typeName)); err != nil {
		return err
	}
	scope := access.ScopeFromContext(ctx)

	if _, err := s.store.GetVisible(ctx, scope, typeName, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return access.ErrForbidden
		}
		return err
	}
	if err := s.store.Delete(ctx, typeName, id); err != nil {
		return err
	}
	s.afterWrite(ctx, typeName, "delete", id, nil)
	return nil
}

// AddProvenance attaches another provenance entry to a visible object,
// widening which scopes can see it.
func (s *Service) AddProvenance(ctx context.Context, typeName, id string, entry access.ProvenanceEntry) (Object, error) {
	if _, ok := Lookup(typeName); !ok {
		return Object{}, ErrUnknownType
	}
	if err := access.CheckPermission(ctx, access.SubresourcePermission(typeName, "provenance_add")); err != nil {
		return Object{}, err
	}
	scope := access.ScopeFromContext(ctx)

	if _, err := s.store.GetVisible(ctx, scope, typeName, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Object{}, access.ErrForbidden
		}
		return Object{}, err
	}
	if err := s.checkEntry(scope, &entry); err != nil {
		return Object{}, err
	}
	if err := s.store.AppendProvenance(ctx, typeName, id, entry); err != nil {
		return Object{}, err
	}
	s.afterWrite(ctx, typeName, "provenance_add", id, map[string]any{"group": entry.Group})
	return s.store.GetVisible(ctx, scope, typeName, id)
}

// AddComment attaches an analyst note to a visible object.
func (s *Service) AddComment(ctx context.Context, typeName, id, body string) (Comment, error) {
	if _, ok := Lookup(typeName); !ok {
		return Comment{}, ErrUnknownType
	}
	if err := access.CheckPermission(ctx, access.SubresourcePermission(typeName, "comments_add")); err != nil {
		return Comment{}, err
	}
	scope := access.ScopeFromContext(ctx)

	if _, err := s.store.GetVisible(ctx, scope, typeName, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Comment{}, access.ErrForbidden
		}
		return Comment{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Comment{}, errors.New("objects: comment body required")
	}
	comment, err := s.store.InsertComment(ctx, Comment{
		ObjectID: id,
		AuthorID: scope.UserID,
		Body:     body,
	})
	if err != nil {
		return Comment{}, err
	}
	s.afterWrite(ctx, typeName, "comment_add", id, nil)
	return comment, nil
}

// Comments lists the notes on a visible object.
func (s *Service) Comments(ctx context.Context, typeName, id string) ([]Comment, error) {
	if _, ok := Lookup(typeName); !ok {
		return nil, ErrUnknownType
	}
	if err := access.CheckPermission(ctx, access.ReadPermission(typeName)); err != nil {
		return nil, err
	}
	scope := access.ScopeFromContext(ctx)

	if _, err := s.store.GetVisible(ctx, scope, typeName, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, access.ErrForbidden
		}
		return nil, err
	}

	var comments []Comment
	params := map[string]any{"action": "comments", "id": id}
	err := s.cache.GetOrCompute(ctx, cacheOp(typeName), params, scope.Fingerprint(), &comments,
		func(ctx context.Context) (any, error) {
			return s.store.ListComments(ctx, id)
		})
	return comments, err
}

func (s *Service) checkEntry(scope *access.Scope, entry *access.ProvenanceEntry) error {
	entry.Group = strings.TrimSpace(entry.Group)
	if entry.Group == "" {
		return fmt.Errorf("%w: group required", ErrInvalidProvenance)
	}
	if !entry.Classification.Valid() {
		return fmt.Errorf("%w: invalid classification", ErrInvalidProvenance)
	}
	if scope != nil && scope.Superuser {
		return nil
	}
	ceiling, ok := scope.Ceiling(entry.Group)
	if !ok || entry.Classification > ceiling {
		return fmt.Errorf("%w: no grant for group %q at %s", ErrInvalidProvenance, entry.Group, entry.Classification)
	}
	return nil
}

// afterWrite bumps the type's cache epoch and records the audit entry.
// Neither failure rolls the write back.
func (s *Service) afterWrite(ctx context.Context, typeName, action, id string, meta map[string]any) {
	if err := s.cache.Invalidate(ctx, cacheOp(typeName)); err != nil && s.logger != nil {
		s.logger.Error("cache invalidation failed",
			slog.String("type", typeName),
			slog.Any("error", err))
	}
	scope := access.ScopeFromContext(ctx)
	var actorID int64
	if scope != nil {
		actorID = scope.UserID
	}
	_ = s.audit.Record(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   typeName + "." + action,
		Entity:   typeName,
		EntityID: id,
		Meta:     meta,
	})
}
