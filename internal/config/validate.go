package config

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rileyhilliard/rexec/internal/decode"
	"github.com/rileyhilliard/rexec/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("encoding", func(fl validator.FieldLevel) bool {
		_, err := decode.Lookup(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks rf field by field and reports the first problem as a
// structured config error.
func Validate(rf *RunFile) error {
	if rf.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This run file is from the future (version %d, but rexec only knows up to %d)", rf.Version, CurrentConfigVersion),
			"Upgrade rexec or lower the version field")
	}

	err := validate.Struct(rf)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.WrapWithCode(err, errors.ErrConfig, "Invalid run configuration", "")
	}

	fe := verrs[0]
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Invalid value for %s: %v", fieldPath(fe), fe.Value()),
		suggestionFor(fe))
}

// RequireTargets checks that a run has something to do.
func RequireTargets(rf *RunFile) error {
	if len(rf.Hosts) == 0 {
		return errors.New(errors.ErrConfig,
			"No hosts to run on",
			"Pass --hosts h1,h2 or list hosts in "+ConfigFileName)
	}
	if len(rf.Commands) == 0 {
		return errors.New(errors.ErrConfig,
			"No commands to run",
			"Pass commands as arguments or list them under 'commands' in "+ConfigFileName)
	}
	return nil
}

// fieldPath turns "RunFile.hosts[1].address" into "hosts[1].address".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "Options.")
}

func suggestionFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s can't be empty", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be between the allowed bounds (%s %s)", fe.Field(), fe.Tag(), fe.Param())
	case "oneof":
		return fmt.Sprintf("Use one of: %s", fe.Param())
	case "encoding":
		return "Use an encoding name like gbk, gb18030, shift_jis or windows-1252"
	}
	return ""
}
