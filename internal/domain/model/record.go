// Пакет model — доменные модели Verify Module.
// VideoRecord — маппинг таблицы video_records, AuditEntry — таблицы audit_log.
package model

import "time"

// Метки originalFileName для регистраций без загруженного файла.
const (
	// FileNameImportedFromURL — запись создана по ссылке без файла
	FileNameImportedFromURL = "imported_from_url"
	// FileNameMetadataOnly — запись создана только по метаданным
	FileNameMetadataOnly = "metadata_only_entry"
)

// VideoRecord — официальная запись реестра.
// После создания запись неизменяема: сервис не обновляет и не удаляет записи.
type VideoRecord struct {
	// VerificationID — UUID, выдаётся при регистрации
	VerificationID string
	// ContentHash — SHA-256 (64 hex-символа нижнего регистра), уникален в реестре.
	// Для регистраций без содержимого — случайное значение-заглушка того же формата.
	ContentHash string
	// Title — название (обязательно, не пустое)
	Title string
	// Authority — организация, зарегистрировавшая запись
	Authority string
	// StorageURL — URL размещённого содержимого (пусто для записей только с метаданными)
	StorageURL string
	// StorageRef — ключ объекта в хранилище содержимого (пусто, если объект не сохранялся)
	StorageRef string
	// OriginalFileName — имя загруженного файла либо одна из меток FileName*
	OriginalFileName string
	// RegisteredAt — время регистрации
	RegisteredAt time.Time
}
