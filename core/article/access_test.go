package article

import (
	"testing"

	"github.com/trezcool/maktaba/core/user"
)

func art(id string, opts ...func(*Article)) Article {
	a := Article{
		ID:               id,
		Title:            "Article " + id,
		Level:            LevelBeginner,
		Keywords:         []string{},
		References:       []string{},
		RestrictedTo:     []string{},
		IndividualAccess: []string{},
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func roles(rs ...string) func(*Article)  { return func(a *Article) { a.RestrictedTo = rs } }
func group(gid string) func(*Article)    { return func(a *Article) { a.GroupID = gid } }
func indiv(ids ...string) func(*Article) { return func(a *Article) { a.IndividualAccess = ids } }
func deleted() func(*Article)            { return func(a *Article) { a.Deleted = true } }

func ids(articles []Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.ID)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestResolve(t *testing.T) {
	admin := Viewer{ID: "u-admin", Email: "admin@test.cd", Roles: []string{user.RoleAdmin}}
	student := Viewer{ID: "u-student", Email: "stud@test.cd", Roles: []string{user.RoleStudent}, Groups: []string{"2"}}
	nobody := Viewer{ID: "u-nobody", Email: "nobody@test.cd"}

	articles := []Article{
		art("a1", roles(user.RoleStudent), group("5")),            // role grant for student
		art("a2", group("2")),                                     // group grant for student
		art("a3", indiv("u-student")),                             // individual grant by ID
		art("a4", indiv("stud@test.cd")),                          // individual grant by email
		art("a5"),                                                 // closed by default
		art("a6", roles(user.RoleStudent), group("2"), deleted()), // deleted, never visible
		art("a7", roles(user.RoleInstructor)),
	}

	tests := []struct {
		name   string
		viewer Viewer
		in     []Article
		want   []string
	}{
		{name: "admin sees all non-deleted", viewer: admin, in: articles, want: []string{"a1", "a2", "a3", "a4", "a5", "a7"}},
		{name: "student OR grants", viewer: student, in: articles, want: []string{"a1", "a2", "a3", "a4"}},
		{name: "no attributes sees nothing", viewer: nobody, in: articles, want: []string{}},
		{name: "empty input", viewer: student, in: nil, want: []string{}},
		{
			name:   "multiple grants de-duplicate",
			viewer: student,
			in: []Article{
				art("x1", roles(user.RoleStudent), group("2"), indiv("u-student")),
				art("x1", roles(user.RoleStudent), group("2"), indiv("u-student")),
			},
			want: []string{"x1"},
		},
		{
			name:   "legacy comma-joined restriction",
			viewer: student,
			in:     []Article{art("l1", roles("admin, student")), art("l2", roles("admin,instructor"))},
			want:   []string{"l1"},
		},
		{
			name:   "order preserved",
			viewer: student,
			in:     []Article{art("z3", group("2")), art("z1", group("2")), art("z2", group("2"))},
			want:   []string{"z3", "z1", "z2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.viewer, tt.in)
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("Resolve() = %v, want %v", ids(got), tt.want)
			}
			for _, a := range got {
				if a.Deleted {
					t.Errorf("Resolve() returned deleted article %s", a.ID)
				}
			}
		})
	}
}

func TestResolve_closedByDefault(t *testing.T) {
	// an article with no grants at all is visible to admins only
	y := art("y1")
	for _, viewer := range []Viewer{
		{ID: "u1"},
		{ID: "u2", Roles: []string{user.RoleStudent, user.RoleInstructor}, Groups: []string{"1", "2", "3"}},
	} {
		if got := Resolve(viewer, []Article{y}); len(got) != 0 {
			t.Errorf("Resolve(%s) = %v, want empty", viewer.ID, ids(got))
		}
	}
	adminViewer := Viewer{ID: "adm", Roles: []string{user.RoleAdmin}}
	if got := Resolve(adminViewer, []Article{y}); !equalIDs(ids(got), []string{"y1"}) {
		t.Errorf("Resolve(admin) = %v, want [y1]", ids(got))
	}
}

func TestResolve_groupMatchIgnoresEmptyGroup(t *testing.T) {
	// a viewer with an empty-string group must not match ungrouped articles
	viewer := Viewer{ID: "u1", Groups: []string{""}}
	if got := Resolve(viewer, []Article{art("g1")}); len(got) != 0 {
		t.Errorf("Resolve() = %v, want empty", ids(got))
	}
}

func TestNormalizeRestriction(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "clean", in: []string{"admin", "student"}, want: []string{"admin", "student"}},
		{name: "comma-joined", in: []string{"admin, instructor"}, want: []string{"admin", "instructor"}},
		{name: "mixed", in: []string{" admin ", "instructor,student", ""}, want: []string{"admin", "instructor", "student"}},
		{name: "empty tokens dropped", in: []string{",,", "  "}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRestriction(tt.in); !equalIDs(got, tt.want) {
				t.Errorf("NormalizeRestriction() = %v, want %v", got, tt.want)
			}
		})
	}
}
