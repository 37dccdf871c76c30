package server

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/alnah/propulse"
)

// hexColorPattern accepts #rgb and #rrggbb only.
var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)

// generateRequest is the JSON body of POST /proposals/generate.
type generateRequest struct {
	ID          string   `json:"id" validate:"omitempty,uuid"`
	Title       string   `json:"title" validate:"required,min=3,max=100"`
	CompanyName string   `json:"companyName" validate:"required,max=200"`
	ClientName  string   `json:"clientName" validate:"max=200"`
	Prompt      string   `json:"prompt" validate:"required,min=20,max=20000"`
	Colors      []string `json:"colors" validate:"max=16,dive,hexcolor"`
	Logo        string   `json:"logo" validate:"omitempty,url"`
	ClientLogo  string   `json:"clientLogo" validate:"omitempty,url"`
	Status      string   `json:"status" validate:"omitempty,oneof=draft sent approved"`
}

// newValidator returns a validator reporting JSON field names, with
// hexcolor restricted to 3 or 6 digits.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Only fails on an empty tag name
	_ = v.RegisterValidation("hexcolor", func(fl validator.FieldLevel) bool {
		return hexColorPattern.MatchString(fl.Field().String())
	})
	return v
}

// fieldError describes one failed validation rule.
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// fieldErrors flattens validator errors for the response body.
func fieldErrors(err error) []fieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, found := strings.Cut(field, "."); found {
			field = rest
		}
		out = append(out, fieldError{Field: field, Rule: fe.Tag()})
	}
	return out
}

// toProposal builds the pipeline input. A missing ID gets a fresh one and
// status defaults to draft.
func (r *generateRequest) toProposal(now time.Time) propulse.Proposal {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		id = uuid.New()
	}
	status := r.Status
	if status == "" {
		status = propulse.StatusDraft
	}
	return propulse.Proposal{
		ID:          id,
		Title:       strings.TrimSpace(r.Title),
		CompanyName: strings.TrimSpace(r.CompanyName),
		ClientName:  strings.TrimSpace(r.ClientName),
		Prompt:      r.Prompt,
		Colors:      r.Colors,
		Logo:        r.Logo,
		ClientLogo:  r.ClientLogo,
		Status:      status,
		CreatedAt:   now,
		LastUpdate:  now,
	}
}
