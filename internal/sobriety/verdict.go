package sobriety

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// Reasons recorded when a check fails without a usable verdict.
const (
	ReasonAnalysisTimeout   = "analysis_timeout"
	ReasonExternalService   = "external_service_failure"
	ReasonUnparseable       = "unparseable_response"
	ReasonUnrecognizedState = "unrecognized_status"
)

// Verdict is the typed outcome of one analysis. It is stored verbatim as the
// record's analysis result.
type Verdict struct {
	Status     domain.SobrietyStatus `json:"status"`
	Reason     string                `json:"reason,omitempty"`
	Findings   json.RawMessage       `json:"findings,omitempty"`
	Confidence *float64              `json:"confidence,omitempty"`
	Raw        string                `json:"raw,omitempty"`
}

// Passed reports whether the verdict clears the laborer.
func (v Verdict) Passed() bool {
	return v.Status == domain.SobrietyPassed
}

// JSON encodes the verdict for storage.
func (v Verdict) JSON() json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// only reachable with invalid Findings bytes
		data, _ = json.Marshal(Verdict{Status: v.Status, Reason: v.Reason, Raw: v.Raw})
	}
	return data
}

// failedVerdict builds a fail-closed verdict carrying the raw text.
func failedVerdict(reason, raw string) Verdict {
	if raw == "" {
		raw = reason
	}
	return Verdict{Status: domain.SobrietyFailed, Reason: reason, Raw: raw}
}

type rawVerdict struct {
	Status     string          `json:"status"`
	Result     string          `json:"result"`
	Sober      *bool           `json:"sober"`
	IsSober    *bool           `json:"is_sober"`
	Findings   json.RawMessage `json:"findings"`
	Confidence *float64        `json:"confidence"`
}

// ParseVerdict interprets the analysis service output. The service may
// answer with a JSON object, a JSON object inside a fenced block or prose, or
// free text. Anything that does not state a recognizable outcome fails closed.
func ParseVerdict(output string) Verdict {
	body := extractObject(output)
	if body == "" {
		return failedVerdict(ReasonUnparseable, output)
	}

	var rv rawVerdict
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&rv); err != nil {
		return failedVerdict(ReasonUnparseable, output)
	}

	status, ok := normalizeStatus(rv)
	if !ok {
		return failedVerdict(ReasonUnrecognizedState, output)
	}

	v := Verdict{Status: status, Confidence: rv.Confidence}
	if f := bytes.TrimSpace(rv.Findings); len(f) > 0 && !bytes.Equal(f, []byte("null")) {
		v.Findings = f
	}
	return v
}

func normalizeStatus(rv rawVerdict) (domain.SobrietyStatus, bool) {
	word := rv.Status
	if word == "" {
		word = rv.Result
	}

	switch strings.ToLower(strings.TrimSpace(word)) {
	case "passed", "pass", "sober", "fit":
		return domain.SobrietyPassed, true
	case "failed", "fail", "intoxicated", "impaired", "unfit", "not_sober":
		return domain.SobrietyFailed, true
	case "":
	default:
		return "", false
	}

	flag := rv.Sober
	if flag == nil {
		flag = rv.IsSober
	}
	if flag == nil {
		return "", false
	}
	if *flag {
		return domain.SobrietyPassed, true
	}
	return domain.SobrietyFailed, true
}

// extractObject returns the outermost {...} span of s, ignoring code fences
// and surrounding prose.
func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
