package store

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// DefaultExtension is used when neither the content type nor the URL
// reveals the format.
const DefaultExtension = ".bin"

// contentTypeExtensions overrides mime.ExtensionsByType, whose answers
// depend on the host's mime tables.
var contentTypeExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/pjpeg":   ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/svg+xml": ".svg",
	"image/tiff":    ".tif",
	"image/avif":    ".avif",
	"image/x-icon":  ".ico",
}

// urlExtensions lists suffixes accepted from a URL path, with their
// normalized form.
var urlExtensions = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
	".gif":  ".gif",
	".webp": ".webp",
	".bmp":  ".bmp",
	".svg":  ".svg",
	".tif":  ".tif",
	".tiff": ".tif",
	".avif": ".avif",
}

// InferExtension derives a file extension from the declared content type
// first, then from the URL path suffix, and falls back to DefaultExtension.
func InferExtension(contentType, rawURL string) string {
	if ext := extensionFromContentType(contentType); ext != "" {
		return ext
	}
	if ext := extensionFromURL(rawURL); ext != "" {
		return ext
	}
	return DefaultExtension
}

func extensionFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	mediaType = strings.ToLower(mediaType)

	if ext, ok := contentTypeExtensions[mediaType]; ok {
		return ext
	}
	// Only image types fall through to the system table.
	if !strings.HasPrefix(mediaType, "image/") {
		return ""
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	if exts[0] == ".jpeg" || exts[0] == ".jpe" {
		return ".jpg"
	}
	return exts[0]
}

func extensionFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	return urlExtensions[ext]
}
