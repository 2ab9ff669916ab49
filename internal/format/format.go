package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/mjallday/switchboard/internal/router"
)

// Payload is the machine-readable form of a routed turn, published to the
// response stream for downstream consumers (text-to-speech, web clients).
type Payload struct {
	SessionID  string    `json:"session_id"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	Response   string    `json:"response"`
	Partial    bool      `json:"partial,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewPayload builds the publishable form of a result. The payload is a pure
// function of the result: the timestamp is the query's arrival time, not the
// formatting time.
func NewPayload(res *router.Result) Payload {
	p := Payload{
		SessionID:  res.Query.SessionID,
		Category:   string(res.HandlerCategory),
		Confidence: res.Classification.Confidence,
		Reasoning:  res.Classification.Reasoning,
		Response:   res.Response,
		Partial:    res.Partial,
		Timestamp:  res.Query.ReceivedAt,
	}
	if res.Err != nil {
		p.Error = fmt.Sprintf("%s: %s", res.Err.Kind, res.Err.Message)
	}
	return p
}

// Text renders a result for terminal presentation. Classification metadata
// is always included so routing decisions stay observable, and degraded
// results are marked rather than raised.
func Text(res *router.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "category: %s (confidence %.2f)\n", res.HandlerCategory, res.Classification.Confidence)
	if res.Classification.Reasoning != "" {
		fmt.Fprintf(&b, "reasoning: %s\n", res.Classification.Reasoning)
	}
	if res.Err != nil {
		fmt.Fprintf(&b, "degraded: %s\n", res.Err.Kind)
	}
	b.WriteString("\n")
	b.WriteString(res.Response)

	return b.String()
}
