package article

import (
	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/user"
)

// Viewer carries the attributes of the requesting user that access resolution
// depends on. It is built explicitly per request; there is no ambient session state.
type Viewer struct {
	ID     string
	Email  string
	Roles  []string
	Groups []string
}

func NewViewer(usr user.User) Viewer {
	return Viewer{
		ID:     usr.ID,
		Email:  usr.Email,
		Roles:  usr.Roles,
		Groups: usr.Groups,
	}
}

func (v Viewer) IsAdmin() bool {
	return core.StringInSlice(v.Roles, user.RoleAdmin)
}

// Resolve returns the subset of non-deleted articles visible to the viewer,
// preserving input order and de-duplicating by article ID.
//
// Access is closed by default. A non-admin sees an article when any one of
// three independent grants matches (OR semantics):
//   - role grant: RestrictedTo shares a role with the viewer,
//   - group grant: GroupID is set and the viewer is a member,
//   - individual grant: IndividualAccess names the viewer's ID or email.
//
// Admins bypass the grants and see every non-deleted article.
func Resolve(viewer Viewer, articles []Article) []Article {
	admin := viewer.IsAdmin()
	visible := make([]Article, 0, len(articles))
	seen := make(map[string]struct{}, len(articles))

	for _, art := range articles {
		if art.Deleted {
			continue
		}
		if _, dup := seen[art.ID]; dup {
			continue
		}
		if admin || granted(viewer, art) {
			visible = append(visible, art)
			seen[art.ID] = struct{}{}
		}
	}
	return visible
}

func granted(viewer Viewer, art Article) bool {
	// role grant; legacy records may still hold comma-joined values
	for _, role := range NormalizeRestriction(art.RestrictedTo) {
		if core.StringInSlice(viewer.Roles, role) {
			return true
		}
	}
	// group grant
	if art.GroupID != "" && core.StringInSlice(viewer.Groups, art.GroupID) {
		return true
	}
	// individual grant
	for _, id := range NormalizeRestriction(art.IndividualAccess) {
		if id == viewer.ID || (viewer.Email != "" && id == viewer.Email) {
			return true
		}
	}
	return false
}
