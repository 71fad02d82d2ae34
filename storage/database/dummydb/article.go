package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/maktaba/core/article"
)

type articleRepository struct {
	db *articleTable
}

var _ article.Repository = (*articleRepository)(nil) // interface compliance check

func NewArticleRepository(db *DB) article.Repository {
	return &articleRepository{db: db.article}
}

// query returns all articles in stable creation order.
func (repo *articleRepository) query() []article.Article {
	articles := make([]article.Article, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		articles = append(articles, *a)
	}
	sort.Slice(articles, func(i, j int) bool {
		return repo.db.order[articles[i].ID] < repo.db.order[articles[j].ID]
	})
	return articles
}

func (repo *articleRepository) CreateArticle(_ context.Context, art article.Article) (article.Article, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	art.ID = uuid.New().String()
	repo.db.table[art.ID] = &art
	repo.db.seq++
	repo.db.order[art.ID] = repo.db.seq
	return art, nil
}

func (repo *articleRepository) QueryAllArticles(_ context.Context) ([]article.Article, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *articleRepository) GetArticleByID(_ context.Context, id string) (article.Article, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if art, ok := repo.db.table[id]; ok {
		return *art, nil
	}
	return article.Article{}, article.ErrNotFound
}

func (repo *articleRepository) UpdateArticle(_ context.Context, art article.Article) (article.Article, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[art.ID]; !ok {
		return article.Article{}, article.ErrNotFound
	}
	repo.db.table[art.ID] = &art
	return art, nil
}

func (repo *articleRepository) SetArticleDeleted(_ context.Context, id string, deleted bool) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	art, ok := repo.db.table[id]
	if !ok {
		return article.ErrNotFound
	}
	art.Deleted = deleted
	art.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *articleRepository) SetGroupDeleted(_ context.Context, groupID string, deleted bool) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := time.Now().UTC()
	for _, art := range repo.db.table {
		if art.GroupID == groupID {
			art.Deleted = deleted
			art.UpdatedAt = now
		}
	}
	return nil
}

func (repo *articleRepository) SetRestrictedTo(_ context.Context, id string, roles []string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	art, ok := repo.db.table[id]
	if !ok {
		return article.ErrNotFound
	}
	art.RestrictedTo = roles
	art.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *articleRepository) SetIndividualAccess(_ context.Context, id string, userIDs []string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	art, ok := repo.db.table[id]
	if !ok {
		return article.ErrNotFound
	}
	art.IndividualAccess = userIDs
	art.UpdatedAt = time.Now().UTC()
	return nil
}
