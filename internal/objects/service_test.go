package objects

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/crucible-ti/crucible/internal/access"
	"github.com/crucible-ti/crucible/internal/platform/cache"
)

type fakeStore struct {
	objects  map[string]Object
	comments map[string][]Comment
	getCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  make(map[string]Object),
		comments: make(map[string][]Comment),
	}
}

func (f *fakeStore) GetVisible(_ context.Context, scope *access.Scope, typeName, id string) (Object, error) {
	f.getCalls++
	obj, ok := f.objects[id]
	if !ok || obj.Type != typeName || !scope.Visible(obj) {
		return Object{}, ErrNotFound
	}
	return obj, nil
}

func (f *fakeStore) ListVisible(_ context.Context, scope *access.Scope, typeName string, params ListParams) ([]Object, error) {
	var items []Object
	for _, obj := range f.objects {
		if obj.Type == typeName && scope.Visible(obj) {
			items = append(items, obj)
		}
	}
	if len(items) > params.Limit {
		items = items[:params.Limit]
	}
	return items, nil
}

func (f *fakeStore) CountVisible(_ context.Context, scope *access.Scope, typeName string) (int64, error) {
	var total int64
	for _, obj := range f.objects {
		if obj.Type == typeName && scope.Visible(obj) {
			total++
		}
	}
	return total, nil
}

func (f *fakeStore) Insert(_ context.Context, obj Object) error {
	f.objects[obj.ID] = obj
	return nil
}

func (f *fakeStore) UpdateFields(_ context.Context, typeName, id string, fields map[string]any) error {
	obj, ok := f.objects[id]
	if !ok || obj.Type != typeName {
		return ErrNotFound
	}
	obj.Fields = fields
	f.objects[id] = obj
	return nil
}

func (f *fakeStore) Delete(_ context.Context, typeName, id string) error {
	obj, ok := f.objects[id]
	if !ok || obj.Type != typeName {
		return ErrNotFound
	}
	delete(f.objects, id)
	return nil
}

func (f *fakeStore) AppendProvenance(_ context.Context, typeName, id string, entry access.ProvenanceEntry) error {
	obj, ok := f.objects[id]
	if !ok || obj.Type != typeName {
		return ErrNotFound
	}
	obj.Provenance = append(obj.Provenance, entry)
	f.objects[id] = obj
	return nil
}

func (f *fakeStore) InsertComment(_ context.Context, comment Comment) (Comment, error) {
	comment.ID = int64(len(f.comments[comment.ObjectID]) + 1)
	f.comments[comment.ObjectID] = append(f.comments[comment.ObjectID], comment)
	return comment, nil
}

func (f *fakeStore) ListComments(_ context.Context, objectID string) ([]Comment, error) {
	return f.comments[objectID], nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := newFakeStore()
	return NewService(store, cache.NewStore(client, 0, nil, nil), nil, nil), store
}

func scopeCtx(userID int64, perms []string, ceilings map[string]access.Classification) context.Context {
	scope := &access.Scope{
		UserID:        userID,
		Permissions:   access.NewPermissionSet(perms...),
		GroupCeilings: ceilings,
	}
	return access.WithRequestContext(context.Background(), &access.RequestContext{
		User:  access.User{ID: userID, Username: "analyst", IsActive: true},
		Scope: scope,
	})
}

func seedObject(store *fakeStore, id, typeName, group string, classification access.Classification) {
	store.objects[id] = Object{
		ID:   id,
		Type: typeName,
		Provenance: []access.ProvenanceEntry{
			{Group: group, Classification: classification},
		},
	}
}

func TestGetRequiresReadPermission(t *testing.T) {
	svc, store := newTestService(t)
	seedObject(store, "s1", "sample", "vendor-feeds", access.ClassificationGreen)

	_, err := svc.Get(context.Background(), "sample", "s1")
	require.ErrorIs(t, err, access.ErrUnauthorized)

	ctx := scopeCtx(1, nil, map[string]access.Classification{"vendor-feeds": access.ClassificationRed})
	_, err = svc.Get(ctx, "sample", "s1")
	require.ErrorIs(t, err, access.ErrForbidden)

	ctx = scopeCtx(1, []string{"sample.read"}, map[string]access.Classification{"vendor-feeds": access.ClassificationRed})
	obj, err := svc.Get(ctx, "sample", "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", obj.ID)
}

func TestGetHidesInvisibleAndMissingAlike(t *testing.T) {
	svc, store := newTestService(t)
	seedObject(store, "s1", "sample", "vendor-feeds", access.ClassificationRed)

	ctx := scopeCtx(1, []string{"sample.read"}, map[string]access.Classification{"vendor-feeds": access.ClassificationGreen})
	_, invisibleErr := svc.Get(ctx, "sample", "s1")
	_, missingErr := svc.Get(ctx, "sample", "nope")

	require.ErrorIs(t, invisibleErr, access.ErrForbidden)
	require.ErrorIs(t, missingErr, access.ErrForbidden)
}

func TestGetCachesPerScope(t *testing.T) {
	svc, store := newTestService(t)
	seedObject(store, "s1", "sample", "vendor-feeds", access.ClassificationGreen)

	ctx := scopeCtx(1, []string{"sample.read"}, map[string]access.Classification{"vendor-feeds": access.ClassificationAmber})

	_, err := svc.Get(ctx, "sample", "s1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "sample", "s1")
	require.NoError(t, err)
	require.Equal(t, 1, store.getCalls)

	// A differently scoped user never reads the first user's entry.
	other := scopeCtx(2, []string{"sample.read"}, map[string]access.Classification{"internal": access.ClassificationRed})
	_, err = svc.Get(other, "sample", "s1")
	require.ErrorIs(t, err, access.ErrForbidden)
	require.Equal(t, 2, store.getCalls)
}

func TestWriteInvalidatesTypeSegment(t *testing.T) {
	svc, store := newTestService(t)
	seedObject(store, "s1", "sample", "vendor-feeds", access.ClassificationGreen)

	ctx := scopeCtx(1,
		[]string{"sample.read", "sample.write"},
		map[string]access.Classification{"vendor-feeds": access.ClassificationAmber})

	_, err := svc.Get(ctx, "sample", "s1")
	require.NoError(t, err)
	require.Equal(t, 1, store.getCalls)

	_, err = svc.Update(ctx, "sample", "s1", map[string]any{"status": "triaged"})
	require.NoError(t, err)

	obj, err := svc.Get(ctx, "sample", "s1")
	require.NoError(t, err)
	require.Equal(t, "triaged", obj.Fields["status"])
}

func TestCreateChecksProvenanceAgainstGrants(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := scopeCtx(1, []string{"sample.write"},
		map[string]access.Classification{"vendor-feeds": access.ClassificationGreen})

	_, err := svc.Create(ctx, "sample", map[string]any{"md5": "abc"}, nil)
	require.ErrorIs(t, err, ErrInvalidProvenance)

	_, err = svc.Create(ctx, "sample", map[string]any{"md5": "abc"},
		[]access.ProvenanceEntry{{Group: "internal", Classification: access.ClassificationWhite}})
	require.ErrorIs(t, err, ErrInvalidProvenance)

	_, err = svc.Create(ctx, "sample", map[string]any{"md5": "abc"},
		[]access.ProvenanceEntry{{Group: "vendor-feeds", Classification: access.ClassificationRed}})
	require.ErrorIs(t, err, ErrInvalidProvenance)

	obj, err := svc.Create(ctx, "sample", map[string]any{"md5": "abc"},
		[]access.ProvenanceEntry{{Group: "vendor-feeds", Classification: access.ClassificationGreen}})
	require.NoError(t, err)
	require.NotEmpty(t, obj.ID)
}

func TestAddProvenanceWidensVisibility(t *testing.T) {
	svc, store := newTestService(t)
	seedObject(store, "s1", "sample", "vendor-feeds", access.ClassificationGreen)

	owner := scopeCtx(1,
		[]string{"sample.read", "sample.provenance_add"},
		map[string]access.Classification{
			"vendor-feeds": access.ClassificationAmber,
			"internal":     access.ClassificationRed,
		})
	reader := scopeCtx(2, []string{"sample.read"},
		map[string]access.Classification{"internal": access.ClassificationRed})

	_, err := svc.Get(reader, "sample", "s1")
	require.ErrorIs(t, err, access.ErrForbidden)

	_, err = svc.AddProvenance(owner, "sample", "s1",
		access.ProvenanceEntry{Group: "internal", Classification: access.ClassificationAmber})
	require.NoError(t, err)

	obj, err := svc.Get(reader, "sample", "s1")
	require.NoError(t, err)
	require.Len(t, obj.Provenance, 2)
}

func TestDeleteRequiresDeletePermission(t *testing.T) {
	svc, store := newTestService(t)
	seedObject(store, "s1", "sample", "vendor-feeds", access.ClassificationGreen)

	ctx := scopeCtx(1, []string{"sample.read", "sample.write"},
		map[string]access.Classification{"vendor-feeds": access.ClassificationRed})
	require.ErrorIs(t, svc.Delete(ctx, "sample", "s1"), access.ErrForbidden)

	ctx = scopeCtx(1, []string{"sample.delete"},
		map[string]access.Classification{"vendor-feeds": access.ClassificationRed})
	require.NoError(t, svc.Delete(ctx, "sample", "s1"))
	require.Empty(t, store.objects)
}

func TestListClampsPageSize(t *testing.T) {
	svc, store := newTestService(t)
	for _, id := range []string{"a", "b", "c"} {
		seedObject(store, id, "indicator", "vendor-feeds", access.ClassificationWhite)
	}
	ctx := scopeCtx(1, []string{"indicator.read"},
		map[string]access.Classification{"vendor-feeds": access.ClassificationWhite})

	result, err := svc.List(ctx, "indicator", ListParams{Limit: 100000, Offset: -5})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, result.Limit)
	require.Zero(t, result.Offset)
	require.EqualValues(t, 3, result.Total)
}

func TestUnknownTypeRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := scopeCtx(1, []string{"rocket.read"}, nil)

	_, err := svc.Get(ctx, "rocket", "x")
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestCommentsInheritObjectVisibility(t *testing.T) {
	svc, store := newTestService(t)
	seedObject(store, "s1", "sample", "vendor-feeds", access.ClassificationAmber)

	ctx := scopeCtx(1,
		[]string{"sample.read", "sample.comments_add"},
		map[string]access.Classification{"vendor-feeds": access.ClassificationAmber})

	comment, err := svc.AddComment(ctx, "sample", "s1", "  matches earlier campaign  ")
	require.NoError(t, err)
	require.Equal(t, "matches earlier campaign", comment.Body)

	comments, err := svc.Comments(ctx, "sample", "s1")
	require.NoError(t, err)
	require.Len(t, comments, 1)

	outsider := scopeCtx(2, []string{"sample.read"},
		map[string]access.Classification{"vendor-feeds": access.ClassificationGreen})
	_, err = svc.Comments(outsider, "sample", "s1")
	require.ErrorIs(t, err, access.ErrForbidden)
}

func TestPermissionCatalogCoversRegistry(t *testing.T) {
	catalog := access.NewPermissionSet(PermissionCatalog()...)
	require.True(t, catalog.Has(access.PermAPIInterface))
	for _, spec := range Types() {
		require.True(t, catalog.Has(spec.Name+".read"))
		require.True(t, catalog.Has(spec.Name+".write"))
		require.True(t, catalog.Has(spec.Name+".delete"))
		for _, action := range spec.Subresources {
			require.True(t, catalog.Has(spec.Name+"."+action))
		}
	}
}
