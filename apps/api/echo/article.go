package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/article"
	"github.com/trezcool/maktaba/core/user"
)

var errArtNotFoundInCtx = errors.New("article object not found in echo.Context")

type articleApi struct {
	svc    article.Service
	usrSvc user.Service
}

func registerArticleAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc article.Service, usrSvc user.Service) {
	api := articleApi{svc: svc, usrSvc: usrSvc}

	ag := g.Group("/articles", jwt)

	// reader endpoints: only articles the caller holds a grant for
	ag.GET("", api.queryVisible)
	ag.GET("/:id", api.retrieveVisible)

	// staff endpoints: instructors may author and retract content.
	// NB: middleware goes on each detail route, not on a "/:id" sub-group;
	// a sub-group with middleware registers its own "/:id" catch-all and
	// shadows the reader GET above.
	obj := ctxArticleMiddleware(api.svc)
	ag.POST("", api.create, staffMiddleware())
	ag.GET("/all", api.queryAllGrouped, adminMiddleware())
	ag.PUT("/:id", api.update, staffMiddleware(), obj)
	ag.DELETE("/:id", api.softDelete, staffMiddleware(), obj)

	// gating and restores stay admin-only
	ag.POST("/:id/restore", api.restore, adminMiddleware(), obj)
	ag.PUT("/:id/restricted-to", api.setRestrictedTo, adminMiddleware(), obj)
	ag.PUT("/:id/individual-access", api.setIndividualAccess, adminMiddleware(), obj)

	gg := g.Group("/article-groups", jwt)
	gg.POST("/:groupID/restore", api.restoreGroup, adminMiddleware())
}

// Handlers

// queryVisible resolves the caller's grants over the whole collection and
// applies the optional search/level/group facets on the result.
func (api *articleApi) queryVisible(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var facets article.Facets
	if err := ctx.Bind(&facets); err != nil {
		return ctx.JSON(http.StatusOK, []article.Article{})
	}
	facets.Clean()

	articles, err := api.svc.VisibleTo(ctx.Request().Context(), article.NewViewer(ctxUsr))
	if err != nil {
		return errors.Wrap(err, "resolving visible articles")
	}
	return ctx.JSON(http.StatusOK, article.Filter(articles, facets))
}

func (api *articleApi) retrieveVisible(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	art, err := api.svc.GetVisibleByID(ctx.Request().Context(), article.NewViewer(ctxUsr), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == article.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding article")
	}
	return ctx.JSON(http.StatusOK, art)
}

func (api *articleApi) create(ctx echo.Context) error {
	var data article.NewArticle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewArticle")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	art, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating article")
	}
	return ctx.JSON(http.StatusCreated, art)
}

// queryAllGrouped returns the non-deleted articles bucketed by group for the
// admin console.
func (api *articleApi) queryAllGrouped(ctx echo.Context) error {
	groups, err := api.svc.GroupedAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying grouped articles")
	}
	if groups == nil {
		groups = []article.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *articleApi) update(ctx echo.Context) error {
	art, ok := ctx.Get("object").(article.Article)
	if !ok {
		return errors.Wrap(errArtNotFoundInCtx, "retrieving object from context")
	}

	var data article.UpdateArticle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateArticle")
	}
	if err := data.Validate(art); err != nil {
		return err
	}

	art, err := api.svc.Update(ctx.Request().Context(), art.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating article")
	}
	return ctx.JSON(http.StatusOK, art)
}

func (api *articleApi) softDelete(ctx echo.Context) error {
	art, ok := ctx.Get("object").(article.Article)
	if !ok {
		return errors.Wrap(errArtNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.SoftDelete(ctx.Request().Context(), art.ID); err != nil {
		return errors.Wrap(err, "soft-deleting article")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *articleApi) restore(ctx echo.Context) error {
	art, ok := ctx.Get("object").(article.Article)
	if !ok {
		return errors.Wrap(errArtNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Restore(ctx.Request().Context(), art.ID); err != nil {
		return errors.Wrap(err, "restoring article")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// restoreGroup clears the deleted flag on every article in the group.
func (api *articleApi) restoreGroup(ctx echo.Context) error {
	if err := api.svc.RestoreGroup(ctx.Request().Context(), ctx.Param("groupID")); err != nil {
		return errors.Wrap(err, "restoring article group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *articleApi) setRestrictedTo(ctx echo.Context) error {
	art, ok := ctx.Get("object").(article.Article)
	if !ok {
		return errors.Wrap(errArtNotFoundInCtx, "retrieving object from context")
	}

	var data RestrictedToRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RestrictedToRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.SetRestrictedTo(ctx.Request().Context(), art.ID, data.Roles); err != nil {
		return errors.Wrap(err, "setting restricted roles")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *articleApi) setIndividualAccess(ctx echo.Context) error {
	art, ok := ctx.Get("object").(article.Article)
	if !ok {
		return errors.Wrap(errArtNotFoundInCtx, "retrieving object from context")
	}

	var data IndividualAccessRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IndividualAccessRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.SetIndividualAccess(ctx.Request().Context(), art.ID, data.Users); err != nil {
		return errors.Wrap(err, "setting individual access")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ctxArticleMiddleware loads the article into the context; deleted articles
// are still reachable here so admins can restore them.
func ctxArticleMiddleware(svc article.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			art, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == article.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding article by ID")
			}
			ctx.Set("object", art)
			return next(ctx)
		}
	}
}

type (
	RestrictedToRequest struct {
		Roles []string `json:"roles" validate:"omitempty,articleroles"`
	}

	IndividualAccessRequest struct {
		// Users holds user IDs or email addresses.
		Users []string `json:"users"`
	}
)

func (rr *RestrictedToRequest) Validate() error {
	rr.Roles = article.NormalizeRestriction(rr.Roles)
	return core.Validate.Struct(rr)
}

func (ir *IndividualAccessRequest) Validate() error {
	users := make([]string, 0, len(ir.Users))
	for _, u := range ir.Users {
		if u = core.CleanString(u); u != "" {
			users = append(users, u)
		}
	}
	ir.Users = users
	return core.Validate.Struct(ir)
}
