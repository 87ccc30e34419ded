package upload

import (
	"strings"

	"github.com/juststore/internal/domain"
)

var extensionTypes = map[string]string{}

func init() {
	for typ, exts := range map[string][]string{
		domain.FileTypeDocument: {
			"pdf", "doc", "docx", "txt", "xls", "xlsx", "csv", "rtf", "ods", "ppt", "odp",
			"md", "html", "htm", "epub", "pages", "fig", "psd", "ai", "indd", "xd",
			"sketch", "afdesign", "afphoto",
		},
		domain.FileTypeImage: {"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp"},
		domain.FileTypeVideo: {"mp4", "avi", "mov", "mkv", "webm"},
		domain.FileTypeAudio: {"mp3", "wav", "ogg", "flac"},
	} {
		for _, ext := range exts {
			extensionTypes[ext] = typ
		}
	}
}

// FileType classifies name by its extension, the lowercased text after the
// last dot. A name without a dot has no extension and is "other".
func FileType(name string) (fileType, extension string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return domain.FileTypeOther, ""
	}
	extension = strings.ToLower(name[i+1:])
	if typ, ok := extensionTypes[extension]; ok {
		return typ, extension
	}
	return domain.FileTypeOther, extension
}
