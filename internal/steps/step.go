// Package steps holds the cog's executable steps and the runner that drives them.
package steps

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// Step is one named, declaratively described unit of work against the CRM.
type Step interface {
	Definition() schema.StepDefinition
	Execute(ctx context.Context, client crm.Client, data map[string]any) (*schema.RunStepResponse, error)
}

// StepInfo is a summary of a registered step for listing.
type StepInfo struct {
	StepID string          `json:"step_id"`
	Name   string          `json:"name"`
	Type   schema.StepType `json:"type"`
}

func pass(format string, args []any, records ...schema.StepRecord) *schema.RunStepResponse {
	return &schema.RunStepResponse{Outcome: schema.OutcomePassed, MessageFormat: format, MessageArgs: args, Records: records}
}

func fail(format string, args []any, records ...schema.StepRecord) *schema.RunStepResponse {
	return &schema.RunStepResponse{Outcome: schema.OutcomeFailed, MessageFormat: format, MessageArgs: args, Records: records}
}

func errored(format string, args []any, records ...schema.StepRecord) *schema.RunStepResponse {
	return &schema.RunStepResponse{Outcome: schema.OutcomeError, MessageFormat: format, MessageArgs: args, Records: records}
}

func keyValue(id, name string, kv map[string]any) schema.StepRecord {
	return schema.StepRecord{ID: id, Name: name, KeyValue: kv}
}

// Param helpers.

func stringParam(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return toString(v)
}

// errorText renders an error for a user-facing message, preferring a CogError's bare message.
func errorText(err error) string {
	var cogErr *schema.CogError
	if errors.As(err, &cogErr) {
		return cogErr.Message
	}
	return err.Error()
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", v)
	}
}
