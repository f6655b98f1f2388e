package model

import (
	"io"
	"strings"
)

// Payload — загруженное содержимое (файл из multipart-формы или поток).
type Payload struct {
	// FileName — имя файла, переданное клиентом
	FileName string
	// ContentType — MIME-тип, заявленный клиентом
	ContentType string
	// Body — содержимое; читается ровно один раз
	Body io.Reader
}

// RegistrationKind — вариант входных данных регистрации.
type RegistrationKind int

const (
	// RegisterPayload — регистрация загруженного файла
	RegisterPayload RegistrationKind = iota + 1
	// RegisterLink — регистрация содержимого, доступного по ссылке
	RegisterLink
	// RegisterMetadataOnly — регистрация только метаданных
	RegisterMetadataOnly
)

func (k RegistrationKind) String() string {
	switch k {
	case RegisterPayload:
		return "payload"
	case RegisterLink:
		return "link"
	case RegisterMetadataOnly:
		return "metadata_only"
	default:
		return "unknown"
	}
}

// RegistrationInput — входные данные регистрации.
// Payload и Link могут присутствовать одновременно: ссылка тогда служит
// запасным storageUrl при недоступности хранилища содержимого.
type RegistrationInput struct {
	Title     string
	Authority string
	Link      string
	Payload   *Payload
	// ActorRole — метка роли вызывающего для журнала аудита
	ActorRole string
}

// Kind определяет вариант входных данных: файл важнее ссылки.
func (in RegistrationInput) Kind() RegistrationKind {
	switch {
	case in.Payload != nil:
		return RegisterPayload
	case strings.TrimSpace(in.Link) != "":
		return RegisterLink
	default:
		return RegisterMetadataOnly
	}
}

// VerificationInput — входные данные проверки.
type VerificationInput struct {
	VerificationID string
	Link           string
	Payload        *Payload
	ActorRole      string
}

// Strategies возвращает стратегии проверки в порядке попыток:
// идентификатор, затем ссылка (только без файла), затем файл.
// Пустой срез — не передано ни одного канала.
func (in VerificationInput) Strategies() []Source {
	var out []Source
	if strings.TrimSpace(in.VerificationID) != "" {
		out = append(out, SourceID)
	}
	if strings.TrimSpace(in.Link) != "" && in.Payload == nil {
		out = append(out, SourceURL)
	}
	if in.Payload != nil {
		out = append(out, SourceFile)
	}
	return out
}

// VerificationOutcome — результат проверки.
type VerificationOutcome struct {
	// Status — VERIFIED, MODIFIED или NOT_FOUND
	Status Result
	// Record — найденная запись (только для VERIFIED)
	Record *VideoRecord
	// Message — пояснение для MODIFIED и NOT_FOUND
	Message string
	// Source — стратегия, принявшая решение
	Source Source
	// ReferenceID — значение, записанное в журнал аудита
	ReferenceID string
}
