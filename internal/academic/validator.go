package academic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"golang.org/x/text/language"
)

const (
	paramID          = "id"
	paramName        = "name"
	paramShortName   = "shortName"
	paramDescription = "description"
	paramStartDate   = "startDate"
	paramEndDate     = "endDate"
	paramActive      = "active"
	paramStatus      = "status"
	paramLocale      = "locale"
	paramDateFormat  = "dateFormat"
)

// Request body parameters accepted on create and update.
var supportedParams = map[string]bool{
	paramName:        true,
	paramShortName:   true,
	paramDescription: true,
	paramStartDate:   true,
	paramEndDate:     true,
	paramActive:      true,
	paramStatus:      true,
	paramLocale:      true,
	paramDateFormat:  true,
}

// Violations are reported in this order.
var paramOrder = []string{
	paramName, paramShortName, paramDescription, paramStartDate, paramEndDate,
	paramLocale, paramDateFormat, paramActive,
}

type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// Command is a validated create or update request.
type Command struct {
	present map[string]bool

	Name        *string
	ShortName   *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Active      *bool
	Locale      string
	DateFormat  string

	startDateInput string
	endDateInput   string
}

// Has reports whether param appeared in the request body, even as null.
func (c *Command) Has(param string) bool {
	return c.present[param]
}

type createRules struct {
	Name        string `json:"name" validate:"required,notblank,max=250"`
	ShortName   string `json:"shortName" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=250"`
}

type updateRules struct {
	Name        *string `json:"name" validate:"omitnil,notblank,max=250"`
	ShortName   *string `json:"shortName" validate:"omitnil,notblank,max=100"`
	Description *string `json:"description" validate:"omitnil,max=250"`
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return &Validator{validate: v}
}

// Parse checks a raw request body and returns the command it describes.
// All violations are collected into a single *ValidationError.
func (v *Validator) Parse(body []byte, mode Mode) (*Command, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, invalidJSON()
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, invalidJSON()
	}

	if err := checkSupported(raw); err != nil {
		return nil, err
	}

	cmd := &Command{present: make(map[string]bool, len(raw))}
	for k := range raw {
		cmd.present[k] = true
	}

	errs := make(map[string]FieldError)
	fail := func(param, reason, message string, value any) {
		if _, seen := errs[param]; seen {
			return
		}
		errs[param] = FieldError{
			Parameter: param,
			Code:      fmt.Sprintf("validation.msg.%s.%s.%s", resourceName, param, reason),
			Message:   message,
			Value:     value,
		}
	}

	for _, param := range []string{paramName, paramShortName, paramDescription, paramLocale, paramDateFormat} {
		msg, ok := raw[param]
		if !ok {
			continue
		}
		if isNull(msg) {
			if mode == ModeUpdate {
				fail(param, "cannot.be.blank", fmt.Sprintf("The parameter `%s` is mandatory.", param), nil)
			}
			continue
		}
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			fail(param, "must.be.a.string", fmt.Sprintf("The parameter `%s` must be a string.", param), string(msg))
			continue
		}
		switch param {
		case paramName:
			cmd.Name = &s
		case paramShortName:
			cmd.ShortName = &s
		case paramDescription:
			cmd.Description = &s
		case paramLocale:
			cmd.Locale = strings.TrimSpace(s)
		case paramDateFormat:
			cmd.DateFormat = strings.TrimSpace(s)
		}
	}

	if msg, ok := raw[paramActive]; ok && !isNull(msg) {
		var b bool
		if err := json.Unmarshal(msg, &b); err != nil {
			fail(paramActive, "must.be.a.boolean", "The parameter `active` must be true or false.", string(msg))
		} else {
			cmd.Active = &b
		}
	}

	for _, fe := range v.checkRules(cmd, mode) {
		fail(fe.Parameter, fe.Code, fe.Message, fe.Value)
	}

	formatOK := true
	if cmd.DateFormat != "" {
		if _, err := layoutFor(cmd.DateFormat); err != nil {
			formatOK = false
			fail(paramDateFormat, "is.invalid", fmt.Sprintf("The parameter `dateFormat` is invalid: %v.", err), cmd.DateFormat)
		}
		if cmd.Locale == "" {
			fail(paramLocale, "cannot.be.blank", "The parameter `locale` is mandatory when `dateFormat` is supplied.", nil)
		}
	}
	if cmd.Locale != "" {
		if _, err := language.Parse(strings.ReplaceAll(cmd.Locale, "_", "-")); err != nil {
			fail(paramLocale, "is.invalid", fmt.Sprintf("The parameter `locale` has an invalid language value %s.", cmd.Locale), cmd.Locale)
		}
	}

	for _, param := range []string{paramStartDate, paramEndDate} {
		msg, ok := raw[param]
		if !ok || isNull(msg) {
			if mode == ModeCreate || ok {
				fail(param, "cannot.be.blank", fmt.Sprintf("The parameter `%s` is mandatory.", param), nil)
			}
			continue
		}
		if !formatOK {
			continue
		}
		date, input, err := decodeDate(msg, cmd.DateFormat)
		if err != nil {
			fail(param, "invalid.date.format", fmt.Sprintf("The parameter `%s` is not a valid date: %s.", param, input), input)
			continue
		}
		if param == paramStartDate {
			cmd.StartDate, cmd.startDateInput = &date, input
		} else {
			cmd.EndDate, cmd.endDateInput = &date, input
		}
	}

	if len(errs) > 0 {
		ordered := make([]FieldError, 0, len(errs))
		for _, param := range paramOrder {
			if fe, ok := errs[param]; ok {
				ordered = append(ordered, fe)
			}
		}
		return nil, newValidationError(ordered)
	}
	return cmd, nil
}

// checkRules runs the struct rules for the text fields. Returned codes hold
// only the reason, e.g. "cannot.be.blank".
func (v *Validator) checkRules(cmd *Command, mode Mode) []FieldError {
	var err error
	if mode == ModeCreate {
		err = v.validate.Struct(createRules{
			Name:        deref(cmd.Name),
			ShortName:   deref(cmd.ShortName),
			Description: deref(cmd.Description),
		})
	} else {
		err = v.validate.Struct(updateRules{
			Name:        cmd.Name,
			ShortName:   cmd.ShortName,
			Description: cmd.Description,
		})
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		param := fe.Field()
		switch fe.Tag() {
		case "max":
			out = append(out, FieldError{
				Parameter: param,
				Code:      "exceeds.max.length",
				Message:   fmt.Sprintf("The parameter `%s` exceeds max length of %s.", param, fe.Param()),
				Value:     fe.Value(),
			})
		default:
			out = append(out, FieldError{
				Parameter: param,
				Code:      "cannot.be.blank",
				Message:   fmt.Sprintf("The parameter `%s` is mandatory.", param),
			})
		}
	}
	return out
}

func checkSupported(raw map[string]json.RawMessage) error {
	var unsupported []string
	for k := range raw {
		if !supportedParams[k] {
			unsupported = append(unsupported, k)
		}
	}
	if len(unsupported) == 0 {
		return nil
	}
	sort.Strings(unsupported)

	errs := make([]FieldError, 0, len(unsupported))
	for _, p := range unsupported {
		errs = append(errs, FieldError{
			Parameter: p,
			Code:      "error.msg.parameter.unsupported",
			Message:   fmt.Sprintf("The parameter %s is not supported.", p),
		})
	}
	return newValidationError(errs)
}

// decodeDate accepts a string in the request's format or a [year, month, day] array.
func decodeDate(msg json.RawMessage, pattern string) (time.Time, string, error) {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		t, err := parseDate(s, pattern)
		return t, s, err
	}

	var parts []int
	if err := json.Unmarshal(msg, &parts); err != nil || len(parts) != 3 {
		return time.Time{}, string(msg), fmt.Errorf("unsupported date value")
	}
	t := time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)
	if t.Year() != parts[0] || int(t.Month()) != parts[1] || t.Day() != parts[2] {
		return time.Time{}, string(msg), fmt.Errorf("date out of range")
	}
	return t, formatDate(t), nil
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
