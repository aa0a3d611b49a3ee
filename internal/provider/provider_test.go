package provider

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassification(t *testing.T) {
	base := errors.New("connection reset")

	transient := NewTransient("transcription", base)
	if !IsTransient(transient) {
		t.Error("expected transient classification")
	}
	if IsPermanent(transient) {
		t.Error("transient error must not be permanent")
	}

	permanent := NewPermanent("translation", base)
	if !IsPermanent(permanent) {
		t.Error("expected permanent classification")
	}
	if IsTransient(permanent) {
		t.Error("permanent error must not be transient")
	}
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewTransient("transcription", errors.New("status 503")))
	if !IsTransient(wrapped) {
		t.Error("wrapping must preserve the transient kind")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("no such media")
	err := NewPermanent("transcription", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestUnclassifiedErrorIsNeither(t *testing.T) {
	err := errors.New("plain failure")
	if IsTransient(err) || IsPermanent(err) {
		t.Error("plain errors carry no classification")
	}
}
