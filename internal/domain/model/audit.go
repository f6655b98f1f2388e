package model

import "time"

// ActionType — тип действия в журнале аудита.
type ActionType string

const (
	ActionUpload ActionType = "UPLOAD"
	ActionVerify ActionType = "VERIFY"
)

// Result — итог операции регистрации или проверки.
type Result string

const (
	ResultRegistered Result = "REGISTERED"
	ResultVerified   Result = "VERIFIED"
	ResultNotFound   Result = "NOT_FOUND"
	ResultModified   Result = "MODIFIED"
)

// Source — канал, через который выполнялась проверка.
type Source string

const (
	SourceFile Source = "FILE"
	SourceURL  Source = "URL"
	SourceID   Source = "ID"
)

// Метки ролей для поля ActorRole.
const (
	ActorOfficialAuthority = "Official Authority"
	ActorFactChecker       = "PIB Fact Check"
)

// ReferenceUnknown — referenceId, когда ни идентификатор, ни хеш не определены.
const ReferenceUnknown = "UNKNOWN"

// AuditEntry — запись журнала аудита (append-only).
type AuditEntry struct {
	// ID — последовательный идентификатор записи
	ID int64
	// ActionType — UPLOAD или VERIFY
	ActionType ActionType
	// ActorRole — метка роли вызывающего
	ActorRole string
	// ReferenceID — verificationId, хеш или исходный идентификатор/ссылка
	ReferenceID string
	// Result — итог (пусто, если не применимо)
	Result Result
	// Source — канал входных данных (пусто для регистрации только метаданных)
	Source Source
	// Details — свободный текст
	Details string
	// Timestamp — время записи
	Timestamp time.Time
}
