package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-points-api/internal/model"
)

const commentColumns = "id, post_id, author_id, parent_id, content, created_at, updated_at"

// CommentRepository handles threaded comment persistence.
type CommentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository creates a new CommentRepository instance.
func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

func scanComment(row pgx.Row) (*model.Comment, error) {
	var c model.Comment
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.ParentID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a comment. parentID 0 creates a top-level comment; the
// one-level nesting rule is enforced by the service before calling here.
func (r *CommentRepository) Create(ctx context.Context, postID, authorID, parentID int64, content string) (*model.Comment, error) {
	const query = `
		INSERT INTO comments (post_id, author_id, parent_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + commentColumns

	c, err := scanComment(r.pool.QueryRow(ctx, query, postID, authorID, parentID, content))
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return c, nil
}

// GetByID retrieves a comment. Returns ErrCommentNotFound if absent.
func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	const query = `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	c, err := scanComment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// UpdateContent replaces the comment body. Authorization is checked by the
// service against the stored author before this runs.
func (r *CommentRepository) UpdateContent(ctx context.Context, id int64, content string) (*model.Comment, error) {
	const query = `
		UPDATE comments
		SET content = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + commentColumns

	c, err := scanComment(r.pool.QueryRow(ctx, query, id, content))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return c, nil
}

// Delete removes a comment together with its direct replies.
func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1 OR parent_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// ListByPost retrieves a page of top-level comments (newest first) with
// their replies embedded oldest-first, plus the total top-level count.
func (r *CommentRepository) ListByPost(ctx context.Context, postID int64, offset, limit int) ([]*model.Comment, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = $1 AND parent_id = 0`, postID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+commentColumns+`
		 FROM comments
		 WHERE post_id = $1 AND parent_id = 0
		 ORDER BY created_at DESC, id DESC
		 OFFSET $2 LIMIT $3`,
		postID, offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var parents []*model.Comment
	byID := make(map[int64]*model.Comment)
	var parentIDs []int64
	for rows.Next() {
		var c model.Comment
		err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.ParentID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Children = []*model.Comment{}
		parents = append(parents, &c)
		byID[c.ID] = &c
		parentIDs = append(parentIDs, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating comments: %w", err)
	}

	if len(parentIDs) == 0 {
		return parents, total, nil
	}

	// Replies stay chronological under each parent while the top level
	// surfaces new discussions first.
	children, err := r.pool.Query(ctx,
		`SELECT `+commentColumns+`
		 FROM comments
		 WHERE parent_id = ANY($1)
		 ORDER BY created_at ASC, id ASC`,
		parentIDs,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list replies: %w", err)
	}
	defer children.Close()

	for children.Next() {
		var c model.Comment
		err := children.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.ParentID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan reply: %w", err)
		}
		if parent, ok := byID[c.ParentID]; ok {
			parent.Children = append(parent.Children, &c)
		}
	}
	if err := children.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating replies: %w", err)
	}

	return parents, total, nil
}
