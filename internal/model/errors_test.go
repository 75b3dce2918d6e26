package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError_Permanent(t *testing.T) {
	err := NewPermanentError("音声が到達不能です", nil)
	if got := ClassifyError(err); got != FailurePermanent {
		t.Errorf("ClassifyError() = %v, want FailurePermanent", got)
	}
}

func TestClassifyError_Transient(t *testing.T) {
	err := NewTransientError("接続タイムアウト", errors.New("dial tcp: timeout"))
	if got := ClassifyError(err); got != FailureTransient {
		t.Errorf("ClassifyError() = %v, want FailureTransient", got)
	}
}

func TestClassifyError_UnknownErrorIsTransient(t *testing.T) {
	// 分類されていないエラーはリトライで回復する可能性を残すため一時的失敗として扱う
	err := errors.New("something unexpected")
	if got := ClassifyError(err); got != FailureTransient {
		t.Errorf("ClassifyError() = %v, want FailureTransient", got)
	}
}

func TestClassifyError_WrappedStageError(t *testing.T) {
	inner := NewPermanentError("サイズ超過", nil)
	wrapped := fmt.Errorf("文字起こしに失敗: %w", inner)
	if got := ClassifyError(wrapped); got != FailurePermanent {
		t.Errorf("ラップされたStageErrorの分類が失われている: got %v", got)
	}
}

func TestStageError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransientError("APIエラー", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is で元エラーを辿れるべき")
	}
}

func TestFailureMessage(t *testing.T) {
	err := NewPermanentError("Keine Sprache erkannt", nil)
	if got := FailureMessage(err); got != "Keine Sprache erkannt" {
		t.Errorf("FailureMessage() = %q", got)
	}

	plain := errors.New("plain error")
	if got := FailureMessage(plain); got != "plain error" {
		t.Errorf("FailureMessage() = %q, want %q", got, "plain error")
	}
}
