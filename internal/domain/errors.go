package domain

import "errors"

var (
	// ErrInvalidSettings is returned when practice settings are malformed.
	ErrInvalidSettings = errors.New("invalid practice settings")
	// ErrEmptyPool is returned when the question bank has no matching questions.
	ErrEmptyPool = errors.New("no questions match the practice settings")
	// ErrSessionNotFound is returned when a practice session does not exist or was evicted.
	ErrSessionNotFound = errors.New("practice session not found")
	// ErrSessionExpired is returned for commands against a session past its expiry.
	ErrSessionExpired = errors.New("practice session expired")
	// ErrSessionNotActive is returned for commands against a completed or abandoned session.
	ErrSessionNotActive = errors.New("practice session is not active")
	// ErrQuestionMismatch indicates the submitted question is not the one being served.
	ErrQuestionMismatch = errors.New("question does not match the current question")
	// ErrRetryNotAllowed indicates a repeated attempt while retries are disabled.
	ErrRetryNotAllowed = errors.New("retry not allowed")
	// ErrQuestionNeverAttempted indicates a retry for a question with no attempts.
	ErrQuestionNeverAttempted = errors.New("question was never attempted")
	// ErrQuestionNotFound indicates the question bank has no question with that uid.
	ErrQuestionNotFound = errors.New("question not found")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidSettings, "invalid_settings"},
	{ErrEmptyPool, "empty_pool"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrSessionExpired, "session_expired"},
	{ErrSessionNotActive, "session_not_active"},
	{ErrQuestionMismatch, "question_mismatch"},
	{ErrRetryNotAllowed, "retry_not_allowed"},
	{ErrQuestionNeverAttempted, "question_never_attempted"},
	{ErrQuestionNotFound, "question_not_found"},
}

// ErrorCode maps an engine error to a stable code for transports.
func ErrorCode(err error) string {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return "internal"
}
