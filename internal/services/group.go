package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ryokrieger/CityConnect/internal/models"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrNotGroupMember  = errors.New("you must join this group first")
	ErrInvalidGroup    = errors.New("group name is required")
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotAuthor       = errors.New("only the author can delete this")
	ErrEmptyContent    = errors.New("content cannot be empty")
)

type GroupService struct {
	db DB
}

func NewGroupService(db DB) *GroupService {
	return &GroupService{db: db}
}

// Suggestions pages through groups tagged with at least one of the user's
// interests, ordered by name.
func (s *GroupService) Suggestions(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.GroupSuggestion], error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	interestIDs, err := userInterestIDs(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if len(interestIDs) == 0 {
		empty := models.NewPage[models.GroupSuggestion](nil, page, 0)
		return &empty, nil
	}

	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT gi.group_id) FROM group_interests gi WHERE gi.interest_id = ANY($1)`,
		interestIDs,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting group suggestions: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT g.id, g.name, g.description, g.created_by, g.created_at,
		        COUNT(gi.interest_id) AS shared,
		        (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS members,
		        EXISTS(SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = $2) AS is_member
		 FROM groups g
		 JOIN group_interests gi ON gi.group_id = g.id AND gi.interest_id = ANY($1)
		 GROUP BY g.id
		 ORDER BY g.name ASC, g.id ASC
		 LIMIT $3 OFFSET $4`,
		interestIDs, userID, models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("listing group suggestions: %w", err)
	}
	defer rows.Close()

	var items []models.GroupSuggestion
	for rows.Next() {
		var g models.GroupSuggestion
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.CreatedAt,
			&g.SharedInterests, &g.MemberCount, &g.IsMember); err != nil {
			return nil, fmt.Errorf("scanning group suggestion: %w", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group suggestions: %w", err)
	}

	result := models.NewPage(items, page, total)
	return &result, nil
}

// Create inserts the group, its interest tags and the creator's membership
// together.
func (s *GroupService) Create(ctx context.Context, creatorID uuid.UUID, params models.CreateGroupParams) (*models.Group, error) {
	if err := requireActor(creatorID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrInvalidGroup
	}
	interestIDs := dedupeIDs(params.InterestIDs)

	group := &models.Group{}
	err := runInTx(ctx, s.db, func(tx Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO groups (name, description, created_by)
			 VALUES ($1, $2, $3)
			 RETURNING id, name, description, created_by, created_at`,
			name, strings.TrimSpace(params.Description), creatorID,
		).Scan(&group.ID, &group.Name, &group.Description, &group.CreatedBy, &group.CreatedAt)
		if err != nil {
			return fmt.Errorf("creating group: %w", err)
		}

		if len(interestIDs) > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO group_interests (group_id, interest_id)
				 SELECT $1::uuid, unnest($2::uuid[])`,
				group.ID, interestIDs,
			); err != nil {
				if isForeignKeyViolation(err) {
					return ErrUnknownInterest
				}
				return fmt.Errorf("tagging group: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`,
			group.ID, creatorID,
		); err != nil {
			return fmt.Errorf("adding creator to group: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Join adds the user to the group. Joining twice is not an error.
func (s *GroupService) Join(ctx context.Context, userID, groupID uuid.UUID) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		groupID, userID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("joining group: %w", err)
	}
	return nil
}

func (s *GroupService) Leave(ctx context.Context, userID, groupID uuid.UUID) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	); err != nil {
		return fmt.Errorf("leaving group: %w", err)
	}
	return nil
}

// Detail returns the group page for a member: tags, posts newest first with
// their comments oldest first, and events by start time.
func (s *GroupService) Detail(ctx context.Context, userID, groupID uuid.UUID) (*models.GroupDetail, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}

	detail := &models.GroupDetail{}
	var isMember bool
	err := s.db.QueryRow(ctx,
		`SELECT g.id, g.name, g.description, g.created_by, g.created_at,
		        (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id),
		        EXISTS(SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = $2)
		 FROM groups g WHERE g.id = $1`,
		groupID, userID,
	).Scan(&detail.Group.ID, &detail.Group.Name, &detail.Group.Description, &detail.Group.CreatedBy,
		&detail.Group.CreatedAt, &detail.Members, &isMember)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading group: %w", err)
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}

	if detail.Interests, err = s.groupInterests(ctx, groupID); err != nil {
		return nil, err
	}
	if detail.Posts, err = s.posts(ctx, groupID); err != nil {
		return nil, err
	}
	if detail.Events, err = listGroupEvents(ctx, s.db, groupID, userID); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *GroupService) groupInterests(ctx context.Context, groupID uuid.UUID) ([]models.Interest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT i.id, i.name, i.category, i.created_at
		 FROM group_interests gi
		 JOIN interests i ON i.id = gi.interest_id
		 WHERE gi.group_id = $1
		 ORDER BY i.name`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing group interests: %w", err)
	}
	defer rows.Close()

	interests := []models.Interest{}
	for rows.Next() {
		var i models.Interest
		if err := rows.Scan(&i.ID, &i.Name, &i.Category, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning group interest: %w", err)
		}
		interests = append(interests, i)
	}
	return interests, rows.Err()
}

func (s *GroupService) posts(ctx context.Context, groupID uuid.UUID) ([]models.Post, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.group_id, p.user_id, u.username, p.content, p.created_at
		 FROM group_posts p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.group_id = $1
		 ORDER BY p.created_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.GroupID, &p.UserID, &p.Username, &p.Content, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		p.Comments = []models.Comment{}
		index[p.ID] = len(posts)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}
	rows.Close()
	if len(posts) == 0 {
		return posts, nil
	}

	postIDs := make([]uuid.UUID, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}
	crows, err := s.db.Query(ctx,
		`SELECT c.id, c.post_id, c.user_id, u.username, c.content, c.created_at
		 FROM group_comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = ANY($1)
		 ORDER BY c.created_at ASC`,
		postIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var c models.Comment
		if err := crows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Username, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		if i, ok := index[c.PostID]; ok {
			posts[i].Comments = append(posts[i].Comments, c)
		}
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return posts, nil
}

// CreatePost adds a post to a group the author belongs to.
func (s *GroupService) CreatePost(ctx context.Context, userID, groupID uuid.UUID, content string) (*models.Post, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	post := &models.Post{Comments: []models.Comment{}}
	err := s.db.QueryRow(ctx,
		`INSERT INTO group_posts (group_id, user_id, content)
		 SELECT $1::uuid, $2::uuid, $3::text
		 WHERE EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
		 RETURNING id, group_id, user_id, content, created_at`,
		groupID, userID, content,
	).Scan(&post.ID, &post.GroupID, &post.UserID, &post.Content, &post.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotGroupMember
	}
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	return post, nil
}

func (s *GroupService) DeletePost(ctx context.Context, userID, postID uuid.UUID) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	return deleteAuthored(ctx, s.db, authoredPost, postID, userID)
}

// AddComment comments on a post in a group the author belongs to.
func (s *GroupService) AddComment(ctx context.Context, userID, postID uuid.UUID, content string) (*models.Comment, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	var groupID uuid.UUID
	var isMember bool
	err := s.db.QueryRow(ctx,
		`SELECT p.group_id,
		        EXISTS(SELECT 1 FROM group_members gm WHERE gm.group_id = p.group_id AND gm.user_id = $2)
		 FROM group_posts p WHERE p.id = $1`,
		postID, userID,
	).Scan(&groupID, &isMember)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading post: %w", err)
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}

	comment := &models.Comment{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO group_comments (post_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, post_id, user_id, content, created_at`,
		postID, userID, content,
	).Scan(&comment.ID, &comment.PostID, &comment.UserID, &comment.Content, &comment.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("creating comment: %w", err)
	}
	return comment, nil
}

func (s *GroupService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	return deleteAuthored(ctx, s.db, authoredComment, commentID, userID)
}

// authoredRow names the statements used to delete content its author owns.
type authoredRow struct {
	label     string
	deleteSQL string
	existsSQL string
	notFound  error
}

var (
	authoredPost = authoredRow{
		label:     "post",
		deleteSQL: `DELETE FROM group_posts WHERE id = $1 AND user_id = $2`,
		existsSQL: `SELECT EXISTS(SELECT 1 FROM group_posts WHERE id = $1)`,
		notFound:  ErrPostNotFound,
	}
	authoredComment = authoredRow{
		label:     "comment",
		deleteSQL: `DELETE FROM group_comments WHERE id = $1 AND user_id = $2`,
		existsSQL: `SELECT EXISTS(SELECT 1 FROM group_comments WHERE id = $1)`,
		notFound:  ErrCommentNotFound,
	}
)

// deleteAuthored removes a row owned by userID. It tells a missing row
// apart from one owned by someone else.
func deleteAuthored(ctx context.Context, db DB, row authoredRow, id, userID uuid.UUID) error {
	tag, err := db.Exec(ctx, row.deleteSQL, id, userID)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", row.label, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx, row.existsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking %s: %w", row.label, err)
	}
	if exists {
		return ErrNotAuthor
	}
	return row.notFound
}
