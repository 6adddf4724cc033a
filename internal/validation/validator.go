package validation

import (
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/bookvault/internal/domain"
	errpkg "github.com/veranemoloko/bookvault/internal/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("safe_id", validateSafeID)
	_ = validate.RegisterValidation("safe_relpath", validateSafeRelPath)
}

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	return validate
}

// ValidateID checks that an id can be used as a single file or directory name.
func ValidateID(kind, id string) error {
	if err := validate.Var(id, "required,max=128,safe_id"); err != nil {
		return errpkg.Invalid("invalid %s %q", kind, id)
	}
	return nil
}

// ValidateManifest checks that every manifest key is a relative path that stays
// inside the resource root.
func ValidateManifest(m domain.ResourceManifest) error {
	for p := range m {
		if err := validate.Var(p, "required,safe_relpath"); err != nil {
			return errpkg.Invalid("malformed manifest entry %q", p)
		}
	}
	return nil
}

func validateSafeID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\:`) && !strings.ContainsRune(id, 0)
}

func validateSafeRelPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if strings.Contains(p, `\`) {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(p))
}
