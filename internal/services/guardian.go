package services

import (
	"context"
	"time"

	"vigia/internal/config"
	"vigia/internal/domain"
	"vigia/internal/logging"
	"vigia/internal/ports"
)

// GuardianService decides what happens after detection: warn, block,
// auto-heal, or escalate, per the configured enforcement mode.
type GuardianService struct {
	alerts   ports.AlertSink
	audit    ports.AuditLog
	cfg      config.GuardianConfig
	detector *Detector
	state    ports.GuardStateStore
}

// NewGuardianService creates a GuardianService
func NewGuardianService(
	cfg config.GuardianConfig,
	detector *Detector,
	state ports.GuardStateStore,
	alerts ports.AlertSink,
	audit ports.AuditLog,
) *GuardianService {
	return &GuardianService{
		alerts:   alerts,
		audit:    audit,
		cfg:      cfg,
		detector: detector,
		state:    state,
	}
}

// Evaluate analyzes the session's recent window and applies enforcement.
// It never returns an error: internal failures degrade to an allowed
// verdict so a guardian bug can never stall the agent.
func (g *GuardianService) Evaluate(ctx context.Context, sessionID string) domain.Verdict {
	if blocked, err := g.state.IsBlocked(sessionID); err == nil && blocked {
		return domain.Verdict{
			Allowed: false,
			Issues:  []string{domain.ErrSessionBlocked.Error()},
		}
	}

	analysis := g.detector.Analyze(ctx, sessionID)
	return g.Enforce(sessionID, analysis)
}

// Enforce applies the mode state machine to one analysis result.
// Severity below the threshold always allows; the threshold itself is
// inclusive on the enforcement side.
func (g *GuardianService) Enforce(sessionID string, analysis domain.Analysis) domain.Verdict {
	severity := analysis.Severity
	issues := analysis.Issues()

	if severity < g.cfg.SeverityThreshold {
		// Near misses still leave an audit trail
		if severity >= g.cfg.SeverityThreshold-10 && len(issues) > 0 {
			g.recordAudit(sessionID, domain.ActionWarning, severity, issues, "", "")
		}
		return domain.Verdict{Allowed: true, Severity: severity, Issues: issues}
	}

	recommendation := g.recommendation(analysis)
	verdict := domain.Verdict{
		Allowed:        true,
		Severity:       severity,
		Issues:         issues,
		Recommendation: recommendation,
	}

	switch g.cfg.Mode {
	case "report":
		g.recordAudit(sessionID, domain.ActionReport, severity, issues, recommendation, "")
		logging.Logger.Warn("Pattern detected (report mode)",
			"session", sessionID, "severity", severity, "recommendation", recommendation)

	case "auto":
		return g.enforceAuto(sessionID, analysis, verdict)

	default: // manual
		g.writeAlert(sessionID, analysis, recommendation)
		if severity >= g.cfg.BlockThreshold {
			if err := g.state.SetBlocked(sessionID, true); err != nil {
				logging.Logger.Error("Failed to persist block", "session", sessionID, "error", err)
			}
			g.recordAudit(sessionID, domain.ActionBlock, severity, issues, recommendation, "")
			verdict.Allowed = false
		} else {
			g.recordAudit(sessionID, domain.ActionWarning, severity, issues, recommendation, "")
		}
	}

	return verdict
}

// enforceAuto applies an approved fix directly, or escalates to manual
// behavior with a reason code
func (g *GuardianService) enforceAuto(sessionID string, analysis domain.Analysis, verdict domain.Verdict) domain.Verdict {
	recommendation := verdict.Recommendation

	if !g.fixApproved(recommendation) {
		return g.escalate(sessionID, analysis, verdict, domain.ReasonFixNotApproved)
	}

	count, err := g.state.AutoFixCount(sessionID)
	if err != nil {
		logging.Logger.Warn("Failed to read auto-fix count", "session", sessionID, "error", err)
	}
	if count >= g.cfg.MaxAutoFixes {
		return g.escalate(sessionID, analysis, verdict, domain.ReasonMaxAutoFixes)
	}

	if _, err := g.state.IncrementAutoFixes(sessionID); err != nil {
		logging.Logger.Error("Failed to record auto fix", "session", sessionID, "error", err)
	}
	g.recordAudit(sessionID, domain.ActionAutoHeal, verdict.Severity, verdict.Issues, recommendation, "")

	verdict.AutoFixed = true
	// Breaking a severe loop means denying the call itself
	if recommendation == domain.FixBreakLoop && verdict.Severity >= g.cfg.BlockThreshold {
		verdict.Allowed = false
	}
	return verdict
}

// escalate falls back to manual behavior: alert, block, audit with reason
func (g *GuardianService) escalate(sessionID string, analysis domain.Analysis, verdict domain.Verdict, reason string) domain.Verdict {
	g.writeAlert(sessionID, analysis, verdict.Recommendation)
	if err := g.state.SetBlocked(sessionID, true); err != nil {
		logging.Logger.Error("Failed to persist block", "session", sessionID, "error", err)
	}
	g.recordAudit(sessionID, domain.ActionEscalate, verdict.Severity, verdict.Issues, verdict.Recommendation, reason)

	verdict.Allowed = false
	verdict.EscalationReason = reason
	return verdict
}

// recommendation maps an analysis to a fix, per the dominant finding
func (g *GuardianService) recommendation(analysis domain.Analysis) string {
	dominant, ok := analysis.Dominant()
	if !ok {
		return domain.FixBreakLoop
	}

	switch dominant.Detector {
	case domain.DetectorLoop:
		if dominant.Severity >= g.cfg.BlockThreshold {
			return domain.FixBreakLoop
		}
		return domain.FixSwitchStrategy
	case domain.DetectorRepetition:
		return domain.FixBreakLoop
	case domain.DetectorCoordination:
		return domain.FixEscalate
	default:
		return domain.FixBreakLoop
	}
}

func (g *GuardianService) fixApproved(fix string) bool {
	for _, blocked := range g.cfg.BlockedFixes {
		if fix == blocked {
			return false
		}
	}
	for _, approved := range g.cfg.AutoFixTypes {
		if fix == approved {
			return true
		}
	}
	return false
}

func (g *GuardianService) writeAlert(sessionID string, analysis domain.Analysis, recommendation string) {
	alert := domain.Alert{
		Timestamp:      time.Now().UTC(),
		SessionID:      sessionID,
		Severity:       analysis.Severity,
		Issues:         analysis.Issues(),
		Recommendation: recommendation,
	}

	if dominant, ok := analysis.Dominant(); ok {
		alert.Pattern = &domain.AlertPattern{
			Type:        dominant.Detector,
			Sequence:    dominant.Sequence,
			Occurrences: dominant.Occurrences,
		}
	}

	if err := g.alerts.Write(alert); err != nil {
		logging.Logger.Error("Failed to write alert", "session", sessionID, "error", err)
	}
}

func (g *GuardianService) recordAudit(sessionID, action string, severity int, issues []string, recommendation, reason string) {
	record := domain.AuditRecord{
		Timestamp:      time.Now().UTC(),
		SessionID:      sessionID,
		Action:         action,
		Severity:       severity,
		Issues:         issues,
		Recommendation: recommendation,
		Reason:         reason,
	}
	if err := g.audit.Record(record); err != nil {
		logging.Logger.Error("Failed to record audit entry", "session", sessionID, "error", err)
	}
}

// Unblock clears the session's block flag
func (g *GuardianService) Unblock(sessionID string) error {
	blocked, err := g.state.IsBlocked(sessionID)
	if err != nil {
		return err
	}
	if !blocked {
		return domain.ErrSessionNotFound
	}
	return g.state.SetBlocked(sessionID, false)
}

// BlockedSessions lists sessions currently blocked pending approval
func (g *GuardianService) BlockedSessions() ([]string, error) {
	return g.state.BlockedSessions()
}
