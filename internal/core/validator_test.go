package core

import (
	"errors"
	"strings"
	"testing"

	"backoffice/internal/types"
)

func validationErrors(t *testing.T, err error) (*types.AppError, []ValidationError) {
	t.Helper()
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	list, ok := appErr.Details["validation_errors"].([]ValidationError)
	if !ok {
		t.Fatalf("details missing validation_errors: %v", appErr.Details)
	}
	return appErr, list
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(testLogger())
	req := types.CreateMessageRequest{
		MessageReq: types.MessageReq{Title: "维护通知", Content: "今晚停机", Type: types.MessageTypeSystem},
		UserIDs:    []int64{1},
	}
	if err := v.ValidateStruct(req); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateStruct_EmbeddedFieldNames(t *testing.T) {
	v := NewValidator(testLogger())
	req := types.CreateMessageRequest{
		MessageReq: types.MessageReq{Content: "x", Type: 3},
	}

	appErr, list := validationErrors(t, v.ValidateStruct(req))

	if appErr.Code != types.ErrCodeValidationMissingField {
		t.Errorf("code = %q, want missing field for the first failure", appErr.Code)
	}
	if appErr.Message != "title is required" {
		t.Errorf("message = %q", appErr.Message)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 failures, got %v", list)
	}
	if list[1].Field != "type" || list[1].Code != string(types.ErrCodeValidationInvalidField) {
		t.Errorf("second failure = %+v", list[1])
	}
	if list[1].Message != "type must be one of [1 2]" {
		t.Errorf("oneof message = %q", list[1].Message)
	}
}

func TestValidateStruct_UserRules(t *testing.T) {
	v := NewValidator(testLogger())
	bad := "not-an-email"

	tests := []struct {
		name    string
		req     types.UserReq
		field   string
		message string
	}{
		{
			"short username",
			types.UserReq{Username: "abc", Nickname: "n", Password: "secret1"},
			"username", "username must be at least 4 characters",
		},
		{
			"long nickname",
			types.UserReq{Username: "alice", Nickname: strings.Repeat("n", 31), Password: "secret1"},
			"nickname", "nickname must be at most 30 characters",
		},
		{
			"bad email",
			types.UserReq{Username: "alice", Nickname: "n", Email: &bad, Password: "secret1"},
			"email", "email must be a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr, list := validationErrors(t, v.ValidateStruct(tt.req))
			if appErr.Code != types.ErrCodeValidationInvalidField {
				t.Errorf("code = %q", appErr.Code)
			}
			if len(list) != 1 || list[0].Field != tt.field || list[0].Message != tt.message {
				t.Errorf("failures = %+v", list)
			}
		})
	}
}

func TestValidateStruct_RecipientIDsPositive(t *testing.T) {
	v := NewValidator(testLogger())
	req := types.CreateMessageRequest{
		MessageReq: types.MessageReq{Title: "t", Content: "c", Type: types.MessageTypeSystem},
		UserIDs:    []int64{2, 0, -5},
	}

	appErr, list := validationErrors(t, v.ValidateStruct(req))

	if appErr.Code != types.ErrCodeValidationInvalidField {
		t.Errorf("code = %q, want invalid field", appErr.Code)
	}
	if appErr.Message != "user_ids[1] must be greater than 0" {
		t.Errorf("message = %q", appErr.Message)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 failures, got %v", list)
	}
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct("plain string")
	if !types.IsCode(err, types.ErrCodeInternalUnexpected) {
		t.Errorf("expected internal error, got %v", err)
	}
}
