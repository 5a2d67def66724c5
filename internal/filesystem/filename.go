package filesystem

import (
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sanitizeReplacer strips characters that are invalid or awkward in
// filenames across the common desktop filesystems.
var sanitizeReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// Sanitize replaces characters that are invalid in filenames with "_".
func Sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	return sanitizeReplacer.Replace(name)
}

// DeriveFilename picks a destination filename following the streaming
// contract's fallback order: Content-Disposition, then the last
// non-empty URL path segment, then a timestamped fallback.
func DeriveFilename(contentDisposition, rawURL string, now time.Time) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if fn := params["filename"]; fn != "" {
				return Sanitize(fn)
			}
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		base := filepath.Base(u.Path)
		if base != "" && base != "." && base != "/" {
			return Sanitize(base)
		}
	}

	return fmt.Sprintf("download_%d.bin", now.Unix())
}

// ResolveCollision returns a path in dir that does not yet exist, based
// on filename. On collision it appends a numeric suffix before the
// extension: "name_1.ext", "name_2.ext", and so on.
func ResolveCollision(dir, filename string) string {
	candidate := filepath.Join(dir, filename)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	for n := 1; n < 10000; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	// Exhausted reasonable attempts; fall back to a timestamp suffix
	// rather than looping indefinitely.
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, time.Now().UnixNano(), ext))
}

// categoryByExtension mirrors the pack's extension-to-category mapping,
// used to file completed downloads into a subdirectory by kind.
var categoryByExtension = map[string]string{
	".jpg": "Images", ".jpeg": "Images", ".png": "Images", ".gif": "Images", ".webp": "Images",
	".mp4": "Videos", ".mkv": "Videos", ".avi": "Videos", ".mov": "Videos",
	".mp3": "Audio", ".flac": "Audio", ".wav": "Audio",
	".zip": "Archives", ".tar": "Archives", ".gz": "Archives", ".7z": "Archives",
	".pdf": "Documents", ".doc": "Documents", ".docx": "Documents", ".txt": "Documents",
	".bib": "References", ".ris": "References",
}

// CategoryFor returns the destination category subdirectory for a
// filename based on its extension, defaulting to "Other".
func CategoryFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if cat, ok := categoryByExtension[ext]; ok {
		return cat
	}
	return "Other"
}
