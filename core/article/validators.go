package article

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/user"
)

var (
	levelTag  = "articlelevel"
	levelText = "invalid level"

	rolesTag  = "articleroles"
	rolesText = "invalid roles"
)

func init() {
	_ = core.Validate.RegisterValidation(levelTag, levelValidation)
	core.RegisterCustomTranslation(levelTag, levelText)

	_ = core.Validate.RegisterValidation(rolesTag, rolesValidation)
	core.RegisterCustomTranslation(rolesTag, rolesText)
}

// levelValidation checks that a level is one of AllLevels.
func levelValidation(fl validator.FieldLevel) bool {
	return core.StringInSlice(AllLevels, fl.Field().String())
}

// rolesValidation checks that a restriction list only names known roles.
func rolesValidation(fl validator.FieldLevel) bool {
	if roles, ok := fl.Field().Interface().([]string); ok {
		for _, role := range roles {
			if !core.StringInSlice(user.AllRoles, role) {
				return false
			}
		}
		return true
	}
	return false
}
