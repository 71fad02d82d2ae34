package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core/article"
)

type dbArticle struct {
	ID                string         `db:"id"`
	Title             string         `db:"title"`
	PublicTitle       string         `db:"public_title"`
	ShortDescription  string         `db:"short_description"`
	PublicDescription string         `db:"public_description"`
	Body              string         `db:"body"`
	Level             string         `db:"level"`
	GroupID           string         `db:"group_id"`
	Keywords          pq.StringArray `db:"keywords"`
	References        pq.StringArray `db:"references"`
	RestrictedTo      pq.StringArray `db:"restricted_to"`
	IndividualAccess  pq.StringArray `db:"individual_access"`
	Deleted           bool           `db:"deleted"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type articleRepository struct {
	db *sqlx.DB
}

var _ article.Repository = (*articleRepository)(nil) // interface compliance check

func NewArticleRepository(db *sqlx.DB) *articleRepository {
	return &articleRepository{db: db}
}

func (repo articleRepository) pack(art article.Article) dbArticle {
	return dbArticle{
		ID:                art.ID,
		Title:             art.Title,
		PublicTitle:       art.PublicTitle,
		ShortDescription:  art.ShortDescription,
		PublicDescription: art.PublicDescription,
		Body:              art.Body,
		Level:             art.Level,
		GroupID:           art.GroupID,
		Keywords:          pq.StringArray(art.Keywords),
		References:        pq.StringArray(art.References),
		RestrictedTo:      pq.StringArray(art.RestrictedTo),
		IndividualAccess:  pq.StringArray(art.IndividualAccess),
		Deleted:           art.Deleted,
		CreatedAt:         art.CreatedAt.UTC(),
		UpdatedAt:         art.UpdatedAt.UTC(),
	}
}

func (repo articleRepository) unpack(a dbArticle) article.Article {
	return article.Article{
		ID:                a.ID,
		Title:             a.Title,
		PublicTitle:       a.PublicTitle,
		ShortDescription:  a.ShortDescription,
		PublicDescription: a.PublicDescription,
		Body:              a.Body,
		Level:             a.Level,
		GroupID:           a.GroupID,
		Keywords:          a.Keywords,
		References:        a.References,
		RestrictedTo:      a.RestrictedTo,
		IndividualAccess:  a.IndividualAccess,
		Deleted:           a.Deleted,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func (repo articleRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return article.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo articleRepository) CreateArticle(ctx context.Context, art article.Article) (article.Article, error) {
	art.ID = uuid.New().String()
	a := repo.pack(art)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO articles (id, title, public_title, short_description, public_description, body, level,
		                      group_id, keywords, "references", restricted_to, individual_access, deleted,
		                      created_at, updated_at)
		VALUES (:id, :title, :public_title, :short_description, :public_description, :body, :level,
		        :group_id, :keywords, :references, :restricted_to, :individual_access, :deleted,
		        :created_at, :updated_at)`, a)
	if err != nil {
		return article.Article{}, errors.Wrap(err, "inserting article")
	}
	return repo.unpack(a), nil
}

func (repo articleRepository) QueryAllArticles(ctx context.Context) ([]article.Article, error) {
	var rows []dbArticle
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM articles ORDER BY created_at, id`); err != nil {
		return nil, errors.Wrap(err, "querying articles")
	}
	articles := make([]article.Article, 0, len(rows))
	for _, a := range rows {
		articles = append(articles, repo.unpack(a))
	}
	return articles, nil
}

func (repo articleRepository) GetArticleByID(ctx context.Context, id string) (article.Article, error) {
	if _, err := uuid.Parse(id); err != nil {
		return article.Article{}, article.ErrNotFound
	}
	var a dbArticle
	if err := repo.db.GetContext(ctx, &a, `SELECT * FROM articles WHERE id = $1`, id); err != nil {
		return article.Article{}, repo.trapNoRowsErr(err, "finding article")
	}
	return repo.unpack(a), nil
}

func (repo articleRepository) UpdateArticle(ctx context.Context, art article.Article) (article.Article, error) {
	a := repo.pack(art)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE articles
		SET title = :title, public_title = :public_title, short_description = :short_description,
		    public_description = :public_description, body = :body, level = :level, group_id = :group_id,
		    keywords = :keywords, "references" = :references, restricted_to = :restricted_to,
		    individual_access = :individual_access, deleted = :deleted, updated_at = :updated_at
		WHERE id = :id`, a)
	if err != nil {
		return article.Article{}, errors.Wrap(err, "updating article")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return article.Article{}, article.ErrNotFound
	}
	return repo.unpack(a), nil
}

func (repo articleRepository) SetArticleDeleted(ctx context.Context, id string, deleted bool) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE articles SET deleted = $1, updated_at = $2 WHERE id = $3`, deleted, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting article deleted flag")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return article.ErrNotFound
	}
	return nil
}

func (repo articleRepository) SetGroupDeleted(ctx context.Context, groupID string, deleted bool) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE articles SET deleted = $1, updated_at = $2 WHERE group_id = $3`, deleted, time.Now().UTC(), groupID)
	if err != nil {
		return errors.Wrap(err, "setting group deleted flag")
	}
	return nil
}

func (repo articleRepository) SetRestrictedTo(ctx context.Context, id string, roles []string) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE articles SET restricted_to = $1, updated_at = $2 WHERE id = $3`,
		pq.StringArray(roles), time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting article restricted roles")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return article.ErrNotFound
	}
	return nil
}

func (repo articleRepository) SetIndividualAccess(ctx context.Context, id string, userIDs []string) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE articles SET individual_access = $1, updated_at = $2 WHERE id = $3`,
		pq.StringArray(userIDs), time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting article individual access")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return article.ErrNotFound
	}
	return nil
}
