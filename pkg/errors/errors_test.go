package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New("test error")
	if err == nil {
		t.Fatal("New() returned nil")
	}

	if !strings.Contains(err.Error(), "test error") {
		t.Errorf("Expected error message to contain 'test error', got: %s", err.Error())
	}

	if err.Location() == "" {
		t.Error("Location should not be empty")
	}
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")
	err := Wrap(baseErr, "wrapped")

	if err == nil {
		t.Fatal("Wrap() returned nil")
	}

	if !strings.Contains(err.Error(), "wrapped") {
		t.Errorf("Expected error message to contain 'wrapped', got: %s", err.Error())
	}

	if !strings.Contains(err.Error(), "base error") {
		t.Errorf("Expected error message to contain 'base error', got: %s", err.Error())
	}

	// Test unwrapping
	unwrapped := errors.Unwrap(err)
	if unwrapped != baseErr {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}
}

func TestWithField(t *testing.T) {
	err := New("test error").WithField("key", "value")

	fields := err.GetFields()
	if len(fields) != 1 {
		t.Fatalf("Expected 1 field, got %d", len(fields))
	}

	if fields["key"] != "value" {
		t.Errorf("Expected field['key'] = 'value', got: %v", fields["key"])
	}
}

func TestWithCode(t *testing.T) {
	err := New("test error").WithCode("TEST_CODE")

	if err.GetCode() != "TEST_CODE" {
		t.Errorf("Expected code 'TEST_CODE', got: %s", err.GetCode())
	}
}

func TestErrorIs(t *testing.T) {
	notFoundErr := NewNotFound("resource not found")
	if !errors.Is(notFoundErr, ErrNotFound) {
		t.Error("errors.Is() should return true for ErrNotFound")
	}

	wrapped := Wrap(ErrInvalidInput, "wrapped invalid input")
	if !errors.Is(wrapped, ErrInvalidInput) {
		t.Error("errors.Is() should return true for wrapped ErrInvalidInput")
	}
}

func TestDomainConstructors(t *testing.T) {
	dup := NewDuplicateItem("ord-123")
	if !errors.Is(dup, ErrDuplicateItem) {
		t.Error("NewDuplicateItem should match ErrDuplicateItem")
	}
	if dup.GetFields()["order_id"] != "ord-123" {
		t.Errorf("Expected order_id field, got: %v", dup.GetFields())
	}

	trans := NewInvalidTransition("completed", "in_progress")
	if !errors.Is(trans, ErrInvalidTransition) {
		t.Error("NewInvalidTransition should match ErrInvalidTransition")
	}
	if !strings.Contains(trans.Error(), "completed -> in_progress") {
		t.Errorf("Expected transition detail in message, got: %s", trans.Error())
	}

	conv := NewConversationNotFound("sess-1")
	if !errors.Is(conv, ErrConversationNotFound) {
		t.Error("NewConversationNotFound should match ErrConversationNotFound")
	}
	if conv.GetCode() != "CONVERSATION_NOT_FOUND" {
		t.Errorf("Expected CONVERSATION_NOT_FOUND code, got: %s", conv.GetCode())
	}

	storage := NewStorageFailure(errors.New("connection refused"))
	if !errors.Is(storage, ErrStorageFailure) {
		t.Error("NewStorageFailure should match ErrStorageFailure")
	}
	if !strings.Contains(storage.Error(), "connection refused") {
		t.Errorf("Expected cause in message, got: %s", storage.Error())
	}
}

func TestErrorAs(t *testing.T) {
	err := New("test error").WithCode("TEST_CODE")

	var structErr *Error
	if !errors.As(err, &structErr) {
		t.Error("errors.As() should successfully cast to *Error")
	}

	if structErr.GetCode() != "TEST_CODE" {
		t.Errorf("Expected code 'TEST_CODE', got: %s", structErr.GetCode())
	}
}

func TestGetErrorCode(t *testing.T) {
	err := NewInvalidInput("bad payload")
	if GetErrorCode(err) != "INVALID_INPUT" {
		t.Errorf("Expected INVALID_INPUT, got: %s", GetErrorCode(err))
	}

	if GetErrorCode(errors.New("plain")) != "" {
		t.Error("Plain errors should yield an empty code")
	}
}
