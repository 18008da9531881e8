package catalog

import (
	"path/filepath"
	"strings"
)

// FileType is the closed classification spec §3 requires for a
// FileDescriptor. Grounded on the teacher's mime.TypeByExtension use
// in internal/models/filemeta.go, generalized from a raw MIME string
// to this repo's closed enum.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypePDF   FileType = "pdf"
	FileTypeText  FileType = "text"
	FileTypeAPK   FileType = "apk"
	FileTypeOther FileType = "other"
)

var extensionTypes = map[string]FileType{
	".jpg": FileTypeImage, ".jpeg": FileTypeImage, ".png": FileTypeImage,
	".gif": FileTypeImage, ".webp": FileTypeImage, ".bmp": FileTypeImage,
	".heic": FileTypeImage, ".tiff": FileTypeImage, ".svg": FileTypeImage,

	".mp4": FileTypeVideo, ".mov": FileTypeVideo, ".mkv": FileTypeVideo,
	".avi": FileTypeVideo, ".webm": FileTypeVideo, ".m4v": FileTypeVideo,

	".pdf": FileTypePDF,

	".txt": FileTypeText, ".md": FileTypeText, ".csv": FileTypeText,
	".log": FileTypeText, ".json": FileTypeText, ".yaml": FileTypeText,
	".yml": FileTypeText, ".xml": FileTypeText,

	".apk": FileTypeAPK,
}

// classify infers a FileType from a case-insensitive extension match
// of name; unknown extensions map to FileTypeOther.
func classify(name string) FileType {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return FileTypeOther
}
