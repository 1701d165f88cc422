package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a caller-supplied qrId containing ':' cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewCallKey is the bucket for call initiation from one IP against one QR.
func NewCallKey(ip, qrID string) string {
	return "rl:call:" + SanitizeKeySegment(ip) + ":" + SanitizeKeySegment(qrID)
}

func NewGeneralKey(ip string) string {
	return "rl:ip:" + SanitizeKeySegment(ip)
}
