package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

// Validator turns raw model text into a ValidatedOutput or a SCHEMA_VIOLATION.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	schema *jsonschema.Resolved
	rules  *validator.Validate
}

func NewValidator() (*Validator, error) {
	resolved, err := OutputSchema().Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output schema: %w", err)
	}

	rules := validator.New()
	rules.RegisterStructValidation(func(sl validator.StructLevel) {
		op := sl.Current().Interface().(model.GraphUpdateOp)
		for _, problem := range op.Check() {
			sl.ReportError(op.Payload, "Payload", "payload", "op_shape", problem)
		}
	}, model.GraphUpdateOp{})

	return &Validator{schema: resolved, rules: rules}, nil
}

// Validate applies, in order: fence stripping, JSON parsing, JSON Schema
// validation, strict typed decoding and struct rules. Nothing partial is
// ever returned.
func (v *Validator) Validate(raw string) (*model.ValidatedOutput, error) {
	const op = "gateway.Validate"

	body, err := stripFence(raw)
	if err != nil {
		return nil, errs.Wrap(errs.KindSchemaViolation, op, err, "malformed response")
	}

	var instance any
	if err := json.Unmarshal([]byte(body), &instance); err != nil {
		return nil, errs.Wrap(errs.KindSchemaViolation, op, err, "response is not JSON")
	}
	if _, ok := instance.(map[string]any); !ok {
		return nil, errs.New(errs.KindSchemaViolation, op, "response is not a JSON object")
	}

	if err := v.schema.Validate(instance); err != nil {
		return nil, errs.New(errs.KindSchemaViolation, op, "response does not match the output schema").
			WithDetails(err.Error())
	}

	var out model.ValidatedOutput
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, errs.Wrap(errs.KindSchemaViolation, op, err, "response does not decode")
	}
	if out.GraphUpdates == nil {
		out.GraphUpdates = []model.GraphUpdateOp{}
	}
	if out.Actions == nil {
		out.Actions = []model.ActionIntent{}
	}

	if err := v.rules.Struct(&out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				if fe.Tag() == "op_shape" {
					details = append(details, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Param()))
					continue
				}
				details = append(details, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return nil, errs.New(errs.KindSchemaViolation, op, "response breaks output rules").WithDetails(details...)
		}
		return nil, errs.Wrap(errs.KindSchemaViolation, op, err, "response breaks output rules")
	}
	return &out, nil
}

// stripFence accepts bare JSON or JSON wrapped in exactly one markdown code
// fence. Any other surrounding text is rejected.
func stripFence(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("empty response")
	}
	if !strings.HasPrefix(s, "```") {
		return s, nil
	}
	if !strings.HasSuffix(s, "```") || len(s) < 6 {
		return "", errors.New("unterminated code fence")
	}

	inner := s[3 : len(s)-3]
	nl := strings.IndexByte(inner, '\n')
	if nl < 0 {
		return "", errors.New("code fence has no body")
	}
	if lang := strings.TrimSpace(inner[:nl]); lang != "" && !strings.EqualFold(lang, "json") {
		return "", fmt.Errorf("unexpected code fence language %q", lang)
	}
	inner = inner[nl+1:]
	if strings.Contains(inner, "```") {
		return "", errors.New("more than one code fence")
	}
	return strings.TrimSpace(inner), nil
}
