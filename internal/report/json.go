package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/testmain/internal/harness"
)

// Response is the JSON envelope written by the json format. It matches the
// envelope the CLI uses for every other command.
type Response struct {
	Status string     `json:"status"` // "ok" or "error"
	Data   *RunData   `json:"data,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo explains a failed run.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunData is the JSON form of a summary.
type RunData struct {
	ProgName     string         `json:"prog_name"`
	RunID        string         `json:"run_id"`
	Seed         uint32         `json:"seed"`
	Counts       map[string]int `json:"counts"`
	ConfigErrors int            `json:"config_errors"`
	DurationMS   int64          `json:"duration_ms"`
	Results      []ResultData   `json:"results"`
}

// ResultData is the JSON form of one result.
type ResultData struct {
	Num        int      `json:"num"`
	Msg        string   `json:"msg"`
	Mode       string   `json:"mode"`
	Verdict    string   `json:"verdict"`
	Invoked    bool     `json:"invoked"`
	Excluded   string   `json:"excluded,omitempty"`
	WIP        string   `json:"wip,omitempty"`
	Note       string   `json:"note,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// Error codes in the JSON envelope.
const (
	CodeTestsFailed = "E_TESTS_FAILED"
)

func writeJSON(w io.Writer, s *harness.Summary) error {
	resp := Response{Status: "ok", Data: NewRunData(s)}
	if s.Failed() {
		resp.Status = "error"
		resp.Error = &ErrorInfo{
			Code:    CodeTestsFailed,
			Message: failureMessage(s),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// NewRunData converts a summary for JSON output. Every table entry is
// included, excluded ones too.
func NewRunData(s *harness.Summary) *RunData {
	d := &RunData{
		ProgName:     s.ProgName,
		RunID:        s.RunID,
		Seed:         s.Seed,
		Counts:       make(map[string]int, len(harness.Verdicts)),
		ConfigErrors: s.ConfigErrors,
		DurationMS:   s.Duration.Milliseconds(),
		Results:      make([]ResultData, 0, len(s.Results)),
	}
	for _, v := range harness.Verdicts {
		d.Counts[string(v)] = s.Count(v)
	}
	for _, r := range s.Results {
		d.Results = append(d.Results, ResultData{
			Num:        r.Num,
			Msg:        r.Msg,
			Mode:       r.Mode.String(),
			Verdict:    string(r.Verdict),
			Invoked:    r.Invoked,
			Excluded:   r.Excluded.String(),
			WIP:        r.WIP,
			Note:       r.Note,
			Errors:     harness.Chain(r.Err),
			DurationMS: r.Duration.Milliseconds(),
		})
	}
	return d
}

func failureMessage(s *harness.Summary) string {
	msg := fmt.Sprintf("%d failed, %d passed unexpectedly",
		s.Count(harness.VerdictFail), s.Count(harness.VerdictXPass))
	if s.ConfigErrors > 0 {
		msg += fmt.Sprintf(", %d configuration errors", s.ConfigErrors)
	}
	return msg
}
