package model

import (
	"mime"
	"strings"
)

// allowedContentTypes — допустимые MIME-типы помимо video/*.
var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
}

// IsAllowedContentType проверяет MIME-тип загружаемого файла.
// Допускаются видео, PDF и растровые изображения; HTML и прочее отклоняются.
func IsAllowedContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	mediaType = strings.ToLower(mediaType)
	if strings.HasPrefix(mediaType, "video/") {
		return true
	}
	return allowedContentTypes[mediaType]
}
