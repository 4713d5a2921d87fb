package reflection

import (
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kazi/core"
)

var (
	disjointTag  = "disjoint"
	disjointText = "a component cannot be both a strength and a growth"

	dateTag  = "datetime"
	dateText = "date must be formatted as YYYY-MM-DD"
)

// InitValidators registers the reflection validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(domainSelectionStructValidation, DomainSelection{})
	core.RegisterCustomTranslation(validate, translator, disjointTag, disjointText)
	core.RegisterCustomTranslation(validate, translator, dateTag, dateText, true)
}

// domainSelectionStructValidation rejects a component selected as both strength and growth.
func domainSelectionStructValidation(sl validator.StructLevel) {
	ds, ok := sl.Current().Interface().(DomainSelection)
	if !ok {
		return
	}
	if len(intersect(ds.Strengths, ds.Growths)) > 0 {
		sl.ReportError(ds.Growths, "growths", "Growths", disjointTag, "")
	}
}

// fieldErrors runs validate on s and converts failures into core.FieldError values.
// Field names are prefixed with prefix when set.
func fieldErrors(validate *validator.Validate, translator ut.Translator, s interface{}, prefix string) ([]core.FieldError, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, err
	}
	msgs := core.TranslateValidationErrors(verrs, translator)
	flds := make([]core.FieldError, 0, len(msgs))
	for fld, msg := range msgs {
		flds = append(flds, core.FieldError{Field: prefixed(prefix, fld), Error: msg})
	}
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return flds, nil
}

func prefixed(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}
