package article

import (
	"strings"
	"time"

	"github.com/trezcool/maktaba/core"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
	LevelExpert       = "expert"
)

var AllLevels = []string{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert}

// UngroupedID labels articles without a group in grouped listings.
const UngroupedID = "Ungrouped"

type Article struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"` // internal
	PublicTitle       string    `json:"public_title"`
	ShortDescription  string    `json:"short_description"` // internal
	PublicDescription string    `json:"public_description"`
	Body              string    `json:"body"`
	Level             string    `json:"level"`
	GroupID           string    `json:"group_id"`
	Keywords          []string  `json:"keywords"`
	References        []string  `json:"references"`
	RestrictedTo      []string  `json:"restricted_to"`     // role names
	IndividualAccess  []string  `json:"individual_access"` // user IDs or emails
	Deleted           bool      `json:"deleted"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
}

// NormalizeRestriction cleans a restriction/individual-access list at the store
// boundary: legacy records hold comma-joined strings; tokens are split, trimmed
// and empties dropped.
func NormalizeRestriction(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, token := range strings.Split(v, ",") {
			if token = strings.TrimSpace(token); token != "" {
				out = append(out, token)
			}
		}
	}
	return out
}

// NewArticle contains information needed to create a new Article.
// Missing fields take the store defaults (level=beginner, empty lists).
type NewArticle struct {
	Title             string   `json:"title" validate:"required"`
	PublicTitle       string   `json:"public_title"`
	ShortDescription  string   `json:"short_description"`
	PublicDescription string   `json:"public_description"`
	Body              string   `json:"body"`
	Level             string   `json:"level" validate:"omitempty,articlelevel"`
	GroupID           string   `json:"group_id"`
	Keywords          []string `json:"keywords"`
	References        []string `json:"references"`
	RestrictedTo      []string `json:"restricted_to" validate:"omitempty,articleroles"`
	IndividualAccess  []string `json:"individual_access"`
}

func (na *NewArticle) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.PublicTitle = core.CleanString(na.PublicTitle)
	na.Level = core.CleanString(na.Level, true /* lower */)
	na.GroupID = core.CleanString(na.GroupID)
	na.RestrictedTo = NormalizeRestriction(na.RestrictedTo)
	na.IndividualAccess = NormalizeRestriction(na.IndividualAccess)
	return core.Validate.Struct(na)
}

// UpdateArticle defines what information may be provided to modify an existing Article.
// nil slices leave the stored lists untouched; empty slices clear them.
type UpdateArticle struct {
	Title             string   `json:"title"`
	PublicTitle       string   `json:"public_title"`
	ShortDescription  string   `json:"short_description"`
	PublicDescription string   `json:"public_description"`
	Body              string   `json:"body"`
	Level             string   `json:"level" validate:"omitempty,articlelevel"`
	GroupID           *string  `json:"group_id"`
	Keywords          []string `json:"keywords"`
	References        []string `json:"references"`
	RestrictedTo      []string `json:"restricted_to" validate:"omitempty,articleroles"`
	IndividualAccess  []string `json:"individual_access"`
}

func (ua *UpdateArticle) Validate(orig Article) error {
	title := core.CleanString(ua.Title)
	if title != "" {
		ua.Title = title
	} else {
		ua.Title = orig.Title
	}

	ua.Level = core.CleanString(ua.Level, true /* lower */)
	if ua.Level == "" {
		ua.Level = orig.Level
	}

	if ua.RestrictedTo != nil {
		ua.RestrictedTo = NormalizeRestriction(ua.RestrictedTo)
	}
	if ua.IndividualAccess != nil {
		ua.IndividualAccess = NormalizeRestriction(ua.IndividualAccess)
	}
	return core.Validate.Struct(ua)
}
