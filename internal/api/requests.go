// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. validator.Validate is
// concurrency-safe and caches struct metadata, so one instance serves
// all handlers.
var validate = validator.New()

// RecentThreatsRequest holds the validated query parameters for
// GET /threats/recent.
type RecentThreatsRequest struct {
	Limit    int    `validate:"min=1,max=1000"`
	Severity string `validate:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW INFO"`
}

// AlertActionRequest is the body for alert acknowledge/resolve calls.
type AlertActionRequest struct {
	Assignee string `json:"assignee" validate:"omitempty,min=1,max=128"`
}

// ExecutePlaybookRequest is the body for POST /playbooks/{id}/execute.
type ExecutePlaybookRequest struct {
	AlertID string `json:"alert_id" validate:"omitempty,min=1,max=64"`
}

// TimelineRequest holds the validated query parameters for
// GET /analytics/timeline.
type TimelineRequest struct {
	Limit int `validate:"min=0,max=1000"`
}

// validateRequest runs struct validation and flattens failures into a
// details map keyed by field name.
func validateRequest(req interface{}) map[string]interface{} {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	details := make(map[string]interface{})
	var verrs validator.ValidationErrors
	if ok := asValidationErrors(err, &verrs); ok {
		for _, fe := range verrs {
			details[fe.Field()] = fmt.Sprintf("failed %q validation", fe.Tag())
		}
	} else {
		details["request"] = err.Error()
	}
	return details
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// queryInt parses an integer query parameter, falling back to def when
// the parameter is absent or malformed. Range enforcement is left to
// struct validation so the error reaches the client.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
