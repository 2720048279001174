package scan

import (
	"net/url"

	"qrscan-service/internal/domain/uid"
)

// Result pairs decoded text with its validation, so a rejected code can
// still be shown as scanned.
type Result struct {
	Raw   string          `json:"raw"`
	Valid bool            `json:"valid"`
	UID   *uid.Identifier `json:"uid,omitempty"`
}

func Evaluate(raw string) Result {
	res := Result{Raw: raw}
	if id, ok := uid.Validate(raw); ok {
		res.Valid = true
		res.UID = &id
	}
	return res
}

// ClientInfo describes the presentation client that owns a scanner.
type ClientInfo struct {
	UserAgent string
	CHMobile  string
	Origin    *url.URL
}

type ValidateRequest struct {
	UID string `json:"uid"`
}

type StartRequest struct {
	Facing string `json:"facing,omitempty"`
}
