package files

import (
	"fmt"
	"regexp"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9.-]`)

// SanitizeName replaces every rune outside [A-Za-z0-9.-] with an underscore
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// objectName builds the stored name from a millisecond stamp
func objectName(stampMillis int64, originalName string) string {
	return fmt.Sprintf("%d-%s", stampMillis, SanitizeName(originalName))
}

// nextStamp returns the current time in milliseconds, bumped past the last
// stamp handed out so two uploads never share a prefix.
func (s *Service) nextStamp() int64 {
	now := s.now().UnixMilli()
	for {
		last := s.lastStamp.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if s.lastStamp.CompareAndSwap(last, next) {
			return next
		}
	}
}
