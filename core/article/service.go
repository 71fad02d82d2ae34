package article

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned for unknown article IDs and for articles
// the requesting user may not see.
var ErrNotFound = errors.New("article not found")

type (
	Repository interface {
		CreateArticle(ctx context.Context, art Article) (Article, error)
		// QueryAllArticles returns every article, deleted ones included,
		// in stable creation order.
		QueryAllArticles(ctx context.Context) ([]Article, error)
		GetArticleByID(ctx context.Context, id string) (Article, error)
		UpdateArticle(ctx context.Context, art Article) (Article, error)
		SetArticleDeleted(ctx context.Context, id string, deleted bool) error
		SetGroupDeleted(ctx context.Context, groupID string, deleted bool) error
		SetRestrictedTo(ctx context.Context, id string, roles []string) error
		SetIndividualAccess(ctx context.Context, id string, userIDs []string) error
	}

	Service interface {
		Create(ctx context.Context, na NewArticle) (Article, error)
		GetByID(ctx context.Context, id string) (Article, error)
		// GetVisibleByID returns ErrNotFound when the article exists but the
		// viewer holds no grant for it.
		GetVisibleByID(ctx context.Context, viewer Viewer, id string) (Article, error)
		QueryAll(ctx context.Context) ([]Article, error)
		// VisibleTo runs the access resolver over the whole collection.
		VisibleTo(ctx context.Context, viewer Viewer) ([]Article, error)
		Update(ctx context.Context, id string, ua UpdateArticle) (Article, error)
		SoftDelete(ctx context.Context, id string) error
		Restore(ctx context.Context, id string) error
		RestoreGroup(ctx context.Context, groupID string) error
		SetRestrictedTo(ctx context.Context, id string, roles []string) error
		SetIndividualAccess(ctx context.Context, id string, userIDs []string) error
		GroupedAll(ctx context.Context) ([]Group, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Group is a named bucket of articles for the admin console listing.
type Group struct {
	ID       string    `json:"id"`
	Articles []Article `json:"articles"`
}

func (svc *service) Create(ctx context.Context, na NewArticle) (Article, error) {
	now := time.Now().UTC()
	art := Article{
		Title:             na.Title,
		PublicTitle:       na.PublicTitle,
		ShortDescription:  na.ShortDescription,
		PublicDescription: na.PublicDescription,
		Body:              na.Body,
		Level:             na.Level,
		GroupID:           na.GroupID,
		Keywords:          na.Keywords,
		References:        na.References,
		RestrictedTo:      na.RestrictedTo,
		IndividualAccess:  na.IndividualAccess,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if art.Level == "" {
		art.Level = LevelBeginner
	}
	if art.Keywords == nil {
		art.Keywords = []string{}
	}
	if art.References == nil {
		art.References = []string{}
	}
	if art.RestrictedTo == nil {
		art.RestrictedTo = []string{}
	}
	if art.IndividualAccess == nil {
		art.IndividualAccess = []string{}
	}
	return svc.repo.CreateArticle(ctx, art)
}

func (svc *service) GetByID(ctx context.Context, id string) (Article, error) {
	return svc.repo.GetArticleByID(ctx, id)
}

func (svc *service) GetVisibleByID(ctx context.Context, viewer Viewer, id string) (Article, error) {
	art, err := svc.repo.GetArticleByID(ctx, id)
	if err != nil {
		return Article{}, err
	}
	if visible := Resolve(viewer, []Article{art}); len(visible) == 0 {
		return Article{}, ErrNotFound
	}
	return art, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Article, error) {
	return svc.repo.QueryAllArticles(ctx)
}

func (svc *service) VisibleTo(ctx context.Context, viewer Viewer) ([]Article, error) {
	articles, err := svc.repo.QueryAllArticles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying articles")
	}
	return Resolve(viewer, articles), nil
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateArticle) (Article, error) {
	art, err := svc.repo.GetArticleByID(ctx, id)
	if err != nil {
		return Article{}, err
	}

	art.Title = ua.Title
	art.PublicTitle = ua.PublicTitle
	art.ShortDescription = ua.ShortDescription
	art.PublicDescription = ua.PublicDescription
	art.Body = ua.Body
	art.Level = ua.Level
	if ua.GroupID != nil {
		art.GroupID = *ua.GroupID
	}
	if ua.Keywords != nil {
		art.Keywords = ua.Keywords
	}
	if ua.References != nil {
		art.References = ua.References
	}
	if ua.RestrictedTo != nil {
		art.RestrictedTo = ua.RestrictedTo
	}
	if ua.IndividualAccess != nil {
		art.IndividualAccess = ua.IndividualAccess
	}
	art.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateArticle(ctx, art)
}

func (svc *service) SoftDelete(ctx context.Context, id string) error {
	return svc.repo.SetArticleDeleted(ctx, id, true)
}

func (svc *service) Restore(ctx context.Context, id string) error {
	return svc.repo.SetArticleDeleted(ctx, id, false)
}

// RestoreGroup clears the deleted flag on every article sharing a groupID.
func (svc *service) RestoreGroup(ctx context.Context, groupID string) error {
	return svc.repo.SetGroupDeleted(ctx, groupID, false)
}

func (svc *service) SetRestrictedTo(ctx context.Context, id string, roles []string) error {
	return svc.repo.SetRestrictedTo(ctx, id, NormalizeRestriction(roles))
}

func (svc *service) SetIndividualAccess(ctx context.Context, id string, userIDs []string) error {
	return svc.repo.SetIndividualAccess(ctx, id, NormalizeRestriction(userIDs))
}

// GroupedAll buckets all non-deleted articles by GroupID for the admin console.
// Groups sort numerically where possible, "Ungrouped" always last.
func (svc *service) GroupedAll(ctx context.Context) ([]Group, error) {
	articles, err := svc.repo.QueryAllArticles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying articles")
	}

	buckets := make(map[string][]Article)
	for _, art := range articles {
		if art.Deleted {
			continue
		}
		gid := art.GroupID
		if gid == "" {
			gid = UngroupedID
		}
		buckets[gid] = append(buckets[gid], art)
	}

	ids := make([]string, 0, len(buckets))
	for gid := range buckets {
		ids = append(ids, gid)
	}
	sort.Slice(ids, func(i, j int) bool { return groupLess(ids[i], ids[j]) })

	groups := make([]Group, 0, len(ids))
	for _, gid := range ids {
		groups = append(groups, Group{ID: gid, Articles: buckets[gid]})
	}
	return groups, nil
}

func groupLess(a, b string) bool {
	if a == UngroupedID {
		return false
	}
	if b == UngroupedID {
		return true
	}
	na, aerr := strconv.Atoi(a)
	nb, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return na < nb
	}
	if aerr == nil {
		return true // numeric groups before named ones
	}
	if berr == nil {
		return false
	}
	return a < b
}
