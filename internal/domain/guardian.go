package domain

import "time"

// Detector names
const (
	DetectorLoop         = "loop"
	DetectorRepetition   = "repetition"
	DetectorToolMisuse   = "tool_misuse"
	DetectorCoordination = "coordination"
)

// Recommendations a finding can map to
const (
	FixBreakLoop      = "break_loop"
	FixAddDelay       = "add_delay"
	FixSwitchStrategy = "switch_strategy"
	FixEscalate       = "escalate"
)

// Escalation reason codes for auto mode
const (
	ReasonFixNotApproved = "fix_type_not_approved"
	ReasonMaxAutoFixes   = "max_auto_fixes_reached"
)

// Enforcement audit actions
const (
	ActionWarning  = "warning"
	ActionBlock    = "block"
	ActionAutoHeal = "auto_heal"
	ActionEscalate = "escalate"
	ActionReport   = "report"
)

// Finding is the output of one detector over a session window
type Finding struct {
	Detector    string   `json:"detector"`
	Detected    bool     `json:"detected"`
	Severity    int      `json:"severity"`
	Issues      []string `json:"issues"`
	Sequence    []string `json:"sequence,omitempty"`
	Occurrences int      `json:"occurrences,omitempty"`
}

// Analysis is the combined result of all detectors for one window
type Analysis struct {
	Findings []Finding `json:"findings"`
	Severity int       `json:"severity"`
}

// Issues collects the issue strings of every fired finding
func (a Analysis) Issues() []string {
	var issues []string
	for _, f := range a.Findings {
		if f.Detected {
			issues = append(issues, f.Issues...)
		}
	}
	return issues
}

// Dominant returns the fired finding with the highest severity
func (a Analysis) Dominant() (Finding, bool) {
	var best Finding
	found := false
	for _, f := range a.Findings {
		if f.Detected && (!found || f.Severity > best.Severity) {
			best = f
			found = true
		}
	}
	return best, found
}

// Verdict is the guardian's enforcement decision for one event
type Verdict struct {
	Allowed          bool     `json:"allowed"`
	Severity         int      `json:"severity"`
	Issues           []string `json:"issues,omitempty"`
	Recommendation   string   `json:"recommendation,omitempty"`
	AutoFixed        bool     `json:"auto_fixed,omitempty"`
	EscalationReason string   `json:"escalation_reason,omitempty"`
}

// Alert is the artifact written for an external approval workflow
type Alert struct {
	Timestamp      time.Time     `json:"timestamp"`
	SessionID      string        `json:"session_id"`
	Severity       int           `json:"severity"`
	Issues         []string      `json:"issues"`
	Recommendation string        `json:"recommendation"`
	Pattern        *AlertPattern `json:"pattern,omitempty"`
}

// AlertPattern summarizes the tool sequence that triggered the alert
type AlertPattern struct {
	Type        string   `json:"type"`
	Sequence    []string `json:"sequence"`
	Occurrences int      `json:"occurrences"`
}

// AuditRecord is one line of the enforcement audit stream
type AuditRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	SessionID      string    `json:"session_id"`
	Action         string    `json:"action"`
	Severity       int       `json:"severity"`
	Issues         []string  `json:"issues,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}
