package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// invalidFilenameChars are replaced with underscores by SanitizeFilename.
// Covers path separators, shell-special characters, spaces, and '+', which
// appears in phone-number identifiers.
const invalidFilenameChars = `\/:*?"<>| +`

// SanitizeFilename returns a filesystem-safe basename: every disallowed
// character becomes an underscore and any directory component is stripped,
// so the result cannot traverse outside its target directory.
func SanitizeFilename(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidFilenameChars, r) {
			return '_'
		}
		return r
	}, name)
	return filepath.Base(sanitized)
}

// UniqueAudioBasename creates a unique mp3 basename for a user identifier and
// artifact kind: "{safeID}_{kind}_{millis}_{hex}.mp3". The timestamp plus
// random suffix makes collisions negligible without a uniqueness check.
func UniqueAudioBasename(identifier, kind string) string {
	if identifier == "" {
		identifier = "unknown"
	}
	safeID := SanitizeFilename(identifier)
	return fmt.Sprintf("%s_%s_%d_%s.mp3", safeID, kind, time.Now().UnixMilli(), GenerateRandomHex(6))
}

// BuildPublicURL joins a configured public base URL with a path segment.
func BuildPublicURL(base, pathSegment string) string {
	baseClean := strings.TrimSpace(base)
	if baseClean != "" && !strings.HasSuffix(baseClean, "/") {
		baseClean += "/"
	}
	return baseClean + strings.TrimPrefix(pathSegment, "/")
}
