package objects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crucible-ti/crucible/internal/access"
)

// ErrNotFound indicates that no row matched. Callers above the
// repository fold it into the forbidden response so a miss is
// indistinguishable from an invisible row.
var ErrNotFound = errors.New("objects: not found")

const provenanceColumn = "provenance"

const selectColumns = "id, object_type, fields, provenance, created_at, updated_at"

// Repository persists objects in PostgreSQL. Every read method takes the
// caller's scope and conjoins the visibility predicate into the query,
// so filtering happens in the database and pagination stays correct.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetVisible fetches one object the scope can see.
func (r *Repository) GetVisible(ctx context.Context, scope *access.Scope, typeName, id string) (Object, error) {
	sql, args := access.FilterQuery(scope,
		"SELECT "+selectColumns+" FROM objects WHERE object_type = $1 AND id = $2",
		[]any{typeName, id}, provenanceColumn)

	obj, err := scanObject(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("objects: get %s/%s: %w", typeName, id, err)
	}
	return obj, nil
}

// ListVisible returns a page of visible objects, newest first.
func (r *Repository) ListVisible(ctx context.Context, scope *access.Scope, typeName string, params ListParams) ([]Object, error) {
	sql, args := access.FilterQuery(scope,
		"SELECT "+selectColumns+" FROM objects WHERE object_type = $1",
		[]any{typeName}, provenanceColumn)
	sql += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("objects: list %s: %w", typeName, err)
	}
	defer rows.Close()

	items := make([]Object, 0, params.Limit)
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, obj)
	}
	return items, rows.Err()
}

// CountVisible counts the rows the scope can see for a type.
func (r *Repository) CountVisible(ctx context.Context, scope *access.Scope, typeName string) (int64, error) {
	sql, args := access.FilterQuery(scope,
		"SELECT COUNT(*) FROM objects WHERE object_type = $1",
		[]any{typeName}, provenanceColumn)

	var total int64
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("objects: count %s: %w", typeName, err)
	}
	return total, nil
}

// Insert stores a new object.
func (r *Repository) Insert(ctx context.Context, obj Object) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO objects (id, object_type, fields, provenance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		obj.ID, obj.Type, obj.Fields, obj.Provenance)
	if err != nil {
		return fmt.Errorf("objects: insert %s: %w", obj.Type, err)
	}
	return nil
}

// UpdateFields replaces the payload of an existing object.
func (r *Repository) UpdateFields(ctx context.Context, typeName, id string, fields map[string]any) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE objects SET fields = $3, updated_at = NOW() WHERE object_type = $1 AND id = $2`,
		typeName, id, fields)
	if err != nil {
		return fmt.Errorf("objects: update %s/%s: %w", typeName, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an object.
func (r *Repository) Delete(ctx context.Context, typeName, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM objects WHERE object_type = $1 AND id = $2`, typeName, id)
	if err != nil {
		return fmt.Errorf("objects: delete %s/%s: %w", typeName, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendProvenance attaches one more provenance entry to an object,
// widening who can see it.
func (r *Repository) AppendProvenance(ctx context.Context, typeName, id string, entry access.ProvenanceEntry) error {
	fragment, err := json.Marshal([]access.ProvenanceEntry{entry})
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE objects SET provenance = provenance || $3::jsonb, updated_at = NOW()
		 WHERE object_type = $1 AND id = $2`,
		typeName, id, fragment)
	if err != nil {
		return fmt.Errorf("objects: append provenance %s/%s: %w", typeName, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertComment stores an analyst comment on an object.
func (r *Repository) InsertComment(ctx context.Context, comment Comment) (Comment, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO object_comments (object_id, author_id, body, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, created_at`,
		comment.ObjectID, comment.AuthorID, comment.Body).
		Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("objects: insert comment: %w", err)
	}
	return comment, nil
}

// ListComments returns an object's comments, oldest first.
func (r *Repository) ListComments(ctx context.Context, objectID string) ([]Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, object_id, author_id, body, created_at
		 FROM object_comments WHERE object_id = $1 ORDER BY created_at, id`, objectID)
	if err != nil {
		return nil, fmt.Errorf("objects: list comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ObjectID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func scanObject(row pgx.Row) (Object, error) {
	var obj Object
	err := row.Scan(&obj.ID, &obj.Type, &obj.Fields, &obj.Provenance, &obj.CreatedAt, &obj.UpdatedAt)
	return obj, err
}
