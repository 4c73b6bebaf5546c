package allocation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
)

// newValidator returns a validator that reports json field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// toValidationError converts validator output into a ValidationError naming
// the first offending field.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewValidationError("", err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	field := verrs[0].Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return apperrors.NewValidationError(field, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be below %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func (s *Service) validateStruct(v interface{}) error {
	return toValidationError(s.validate.Struct(v))
}

func checkNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		appErr := apperrors.NewValidationError(field, fmt.Sprintf("%s must not be negative", field))
		appErr.Code = apperrors.CodeNegativeValue
		return appErr
	}
	return nil
}

func checkPercentage(field string, v float64) error {
	if v < 0 || v > 100 {
		appErr := apperrors.NewValidationError(field, fmt.Sprintf("%s must be between 0 and 100", field))
		appErr.Code = apperrors.CodePercentageRange
		return appErr
	}
	return nil
}

// checkNotBlank rejects values that are empty once surrounding whitespace is
// trimmed, which min length tags let through.
func checkNotBlank(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return apperrors.NewValidationError(field, fmt.Sprintf("%s is required", field))
	}
	return nil
}

func checkCategory(field string, c entities.AssetClassCategory) error {
	if !c.IsValid() {
		return apperrors.NewValidationError(field, fmt.Sprintf("unknown asset class category %q", c))
	}
	return nil
}

// Range checks run before struct validation so they surface with their own codes.
func (s *Service) validateAssetClassInput(in entities.AssetClassInput) error {
	if err := checkNonNegative("current_value", in.CurrentValue); err != nil {
		return err
	}
	if err := checkPercentage("target_percentage", in.TargetPercentage); err != nil {
		return err
	}
	if err := s.validateStruct(in); err != nil {
		return err
	}
	if err := checkNotBlank("name", in.Name); err != nil {
		return err
	}
	if err := checkCategory("category", in.Category); err != nil {
		return err
	}
	for _, g := range in.GeographicBreakdown {
		if err := checkNonNegative("geographic_breakdown.value", g.Value); err != nil {
			return err
		}
	}
	for _, h := range in.TopHoldings {
		if err := checkNonNegative("top_holdings.value", h.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) validateTargetAllocation(ta entities.TargetAllocation) error {
	if err := s.validateStruct(ta); err != nil {
		return err
	}
	for _, t := range ta.Targets {
		if err := checkCategory("targets.category", t.Category); err != nil {
			return err
		}
	}
	for _, c := range ta.Constraints {
		if err := checkCategory("constraints.category", c.Category); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) validateAssetClassUpdate(u entities.AssetClassUpdate) error {
	if u.CurrentValue != nil {
		if err := checkNonNegative("current_value", *u.CurrentValue); err != nil {
			return err
		}
	}
	if u.TargetPercentage != nil {
		if err := checkPercentage("target_percentage", *u.TargetPercentage); err != nil {
			return err
		}
	}
	if err := s.validateStruct(u); err != nil {
		return err
	}
	if u.Name != nil {
		if err := checkNotBlank("name", *u.Name); err != nil {
			return err
		}
	}
	if u.TaxCharacteristics != nil {
		if err := s.validateStruct(*u.TaxCharacteristics); err != nil {
			return err
		}
	}
	if u.Performance != nil {
		if err := s.validateStruct(*u.Performance); err != nil {
			return err
		}
	}
	if u.GeographicBreakdown != nil {
		for _, g := range *u.GeographicBreakdown {
			if err := checkNonNegative("geographic_breakdown.value", g.Value); err != nil {
				return err
			}
		}
	}
	if u.TopHoldings != nil {
		for _, h := range *u.TopHoldings {
			if err := checkNonNegative("top_holdings.value", h.Value); err != nil {
				return err
			}
		}
	}
	return nil
}
