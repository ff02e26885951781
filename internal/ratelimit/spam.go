package ratelimit

import (
	"strings"
	"unicode"
)

const (
	repeatRunThreshold = 10
	allCapsMinLen      = 20
	punctRunThreshold  = 5
	minMessageLen      = 2
)

var abusiveFragments = []string{
	"kill yourself",
	"kys",
	"go die",
	"i hate you",
	"worthless bot",
}

// Classify runs the spam and abuse heuristics over a message. It is a
// deterministic filter, not a classifier; false positives are acceptable.
func Classify(message string) Classification {
	if IsAbusive(message) {
		return ClassAbuse
	}
	if IsSpam(message) {
		return ClassSpam
	}
	return ClassNormal
}

// IsSpam flags degenerate messages: a long single-character run, an all-caps
// wall of text, stacked terminal punctuation, or a near-empty message.
func IsSpam(message string) bool {
	trimmed := strings.TrimSpace(message)
	if len(trimmed) < minMessageLen {
		return true
	}
	if hasRepeatedRun(trimmed, repeatRunThreshold) {
		return true
	}
	if isShouting(trimmed) {
		return true
	}
	if hasPunctuationRun(trimmed, punctRunThreshold) {
		return true
	}
	return false
}

// IsAbusive matches a short fixed list of hostile fragments.
func IsAbusive(message string) bool {
	lower := strings.ToLower(message)
	for _, frag := range abusiveFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// hasRepeatedRun reports whether any rune repeats more than limit times in a row.
func hasRepeatedRun(s string, limit int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run > limit {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

func isShouting(s string) bool {
	if len(s) <= allCapsMinLen {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func hasPunctuationRun(s string, limit int) bool {
	run := 0
	for _, r := range s {
		if r == '!' || r == '?' || r == '.' {
			run++
			if run >= limit {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
