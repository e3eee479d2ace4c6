package remote

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// Verdict is how a single backend exchange is interpreted.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictPaused
	VerdictUnreachable
	VerdictRejected
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictPaused:
		return "paused"
	case VerdictUnreachable:
		return "unreachable"
	case VerdictRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

var pausedPattern = regexp.MustCompile(`(?i)project\s+(?:is\s+|has\s+been\s+)?paused`)

// networkSignatures are matched case-insensitively against transport errors.
// Browser-style messages are kept so errors relayed from the site classify the
// same way as Go's own dial errors.
var networkSignatures = []string{
	"failed to fetch",
	"networkerror",
	"network error",
	"load failed",
	"cors",
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"eof",
}

// IsNetworkError reports whether err looks like the backend could not be
// reached at all.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range networkSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// IsPausedText reports whether a response body carries the paused-project
// message, wherever it appears in the text.
func IsPausedText(body []byte) bool {
	return pausedPattern.Match(body)
}

// ClassifyPausedSignal is the one place that knows how the backend says it is
// paused. The reserved status code wins without reading the body; otherwise
// the body is read as text and matched against the paused phrase. The bytes
// read are returned so callers do not consume the body twice.
func (c *Client) ClassifyPausedSignal(resp *http.Response) (paused bool, body []byte, err error) {
	if resp.StatusCode == c.pausedStatus {
		return true, nil, nil
	}
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, err
	}
	return IsPausedText(body), body, nil
}

// RejectionMessage extracts the user-facing message from a failed response:
// the JSON "error" field, then "message", then the raw text.
func RejectionMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := stringField(payload, "error"); msg != "" {
			return msg
		}
		if msg := stringField(payload, "message"); msg != "" {
			return msg
		}
		if nested, ok := payload["error"].(map[string]any); ok {
			if msg := stringField(nested, "message"); msg != "" {
				return msg
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Request failed"
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
