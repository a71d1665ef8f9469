package core

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxInputScale is the number of decimal places stored for quantities, prices
// and discounts. Inputs with more places are refused so the stored lines
// reproduce the stored totals exactly.
const MaxInputScale = 6

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// lineValidator returns the shared validator. decimal.Decimal fields reach the
// validator as their exact string form and are checked by the dgte, dlte and
// dscale tags, which compare in decimal arithmetic.
func lineValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
			d, ok := v.Interface().(decimal.Decimal)
			if !ok {
				return nil
			}
			return d.String()
		}, decimal.Decimal{})
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("dgte", compareDecimal(func(v, p decimal.Decimal) bool { return v.GreaterThanOrEqual(p) }))
		_ = validate.RegisterValidation("dlte", compareDecimal(func(v, p decimal.Decimal) bool { return v.LessThanOrEqual(p) }))
		_ = validate.RegisterValidation("dscale", func(fl validator.FieldLevel) bool {
			v, err := decimal.NewFromString(fl.Field().String())
			if err != nil {
				return false
			}
			places, err := strconv.ParseInt(fl.Param(), 10, 32)
			if err != nil {
				return false
			}
			return v.Equal(v.Round(int32(places)))
		})
	})
	return validate
}

func compareDecimal(ok func(v, param decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		p, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return ok(v, p)
	}
}

// ValidateLines checks the preconditions ComputeTotals relies on:
// non-negative quantities and prices, discounts within 0..100, and no more
// than MaxInputScale decimal places.
func ValidateLines(lines []DocumentLine) error {
	v := lineValidator()
	seen := make(map[int]bool, len(lines))
	for i, l := range lines {
		if err := v.Struct(l); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				fe := verrs[0]
				return invalid(fmt.Sprintf("lines[%d].%s", i, fe.Field()), "failed %q constraint (%s)", fe.Tag(), fe.Param())
			}
			return invalid(fmt.Sprintf("lines[%d]", i), "%v", err)
		}
		if l.LineID < 0 {
			return invalid(fmt.Sprintf("lines[%d].line_id", i), "must not be negative")
		}
		if l.LineID != 0 {
			if seen[l.LineID] {
				return invalid(fmt.Sprintf("lines[%d].line_id", i), "duplicate line id %d", l.LineID)
			}
			seen[l.LineID] = true
		}
	}
	return nil
}

// ValidateDraft checks a draft before it is priced and saved.
func ValidateDraft(d Draft) error {
	if !d.Type.Valid() {
		return invalid("type", "unknown document type %q", d.Type)
	}
	if len(d.Lines) == 0 {
		return invalid("lines", "a document needs at least one line")
	}
	if d.DueDate != nil && !d.Date.IsZero() && d.DueDate.Before(d.Date) {
		return invalid("due_date", "due date is before the document date")
	}
	if d.Type == Avoir && d.SourceDocumentID == nil {
		return invalid("source_document_id", "a credit note must reference an invoice")
	}
	return ValidateLines(d.Lines)
}
