package model

import "time"

// Outcome はサインアップ実行の結果を表す。
type Outcome struct {
	Success    bool
	HTTPStatus int
	Reason     string
}

// Succeeded は成功のOutcomeを生成する。
func Succeeded(httpStatus int) Outcome {
	return Outcome{Success: true, HTTPStatus: httpStatus}
}

// Failed は失敗のOutcomeを生成する。
func Failed(httpStatus int, reason string) Outcome {
	return Outcome{HTTPStatus: httpStatus, Reason: reason}
}

// AttemptResult はサインアップ試行の記録上の結果。
type AttemptResult string

const (
	// AttemptResultSuccess はサインアップ成功。
	AttemptResultSuccess AttemptResult = "success"
	// AttemptResultFailure はサインアップ失敗。
	AttemptResultFailure AttemptResult = "failure"
)

// SignupAttempt は実行したサインアップ操作の監査記録。
type SignupAttempt struct {
	ID          string
	EventID     int64
	EventName   string
	GroupName   string
	StartTime   string
	Place       string
	Method      string
	Path        string
	Result      AttemptResult
	HTTPStatus  int
	Reason      string
	AttemptedAt time.Time
}

// ResultOf はOutcomeを記録用の結果に変換する。
func ResultOf(o Outcome) AttemptResult {
	if o.Success {
		return AttemptResultSuccess
	}
	return AttemptResultFailure
}
