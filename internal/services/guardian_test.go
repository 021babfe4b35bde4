package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigia/internal/config"
	"vigia/internal/domain"
)

type guardianHarness struct {
	service *GuardianService
	state   *fakeState
	alerts  *fakeAlertSink
	audit   *fakeAuditLog
}

func newGuardianHarness(mutate func(*config.GuardianConfig)) *guardianHarness {
	cfg := config.GuardianSettings{}.Resolve()
	if mutate != nil {
		mutate(&cfg)
	}

	h := &guardianHarness{
		state:  newFakeState(),
		alerts: &fakeAlertSink{},
		audit:  &fakeAuditLog{},
	}
	h.service = NewGuardianService(cfg, nil, h.state, h.alerts, h.audit)
	return h
}

func analysisWith(detector string, severity int) domain.Analysis {
	return domain.Analysis{
		Findings: []domain.Finding{
			{
				Detector: detector,
				Detected: true,
				Severity: severity,
				Issues:   []string{"synthetic issue"},
			},
		},
		Severity: severity,
	}
}

func TestEnforceWellBelowThreshold(t *testing.T) {
	h := newGuardianHarness(nil)

	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorLoop, 25))

	assert.True(t, verdict.Allowed)
	assert.Empty(t, h.audit.records)
	assert.Empty(t, h.alerts.alerts)
}

func TestEnforceWarningBandBelowThreshold(t *testing.T) {
	h := newGuardianHarness(nil)

	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorLoop, 39))

	assert.True(t, verdict.Allowed)
	assert.Empty(t, h.alerts.alerts)
	require.Len(t, h.audit.records, 1)
	assert.Equal(t, domain.ActionWarning, h.audit.records[0].Action)
	assert.Equal(t, 39, h.audit.records[0].Severity)
}

func TestEnforceThresholdIsInclusive(t *testing.T) {
	h := newGuardianHarness(nil)

	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorLoop, 40))

	// 40 is at the threshold but below the block level: warn, don't block
	assert.True(t, verdict.Allowed)
	assert.Equal(t, domain.FixSwitchStrategy, verdict.Recommendation)
	require.Len(t, h.alerts.alerts, 1)
	require.Len(t, h.audit.records, 1)
	assert.Equal(t, domain.ActionWarning, h.audit.records[0].Action)

	blocked, err := h.state.IsBlocked("sess-1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestEnforceManualBlocksAtBlockThreshold(t *testing.T) {
	h := newGuardianHarness(nil)

	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorLoop, 60))

	assert.False(t, verdict.Allowed)
	assert.Equal(t, domain.FixBreakLoop, verdict.Recommendation)
	require.Len(t, h.alerts.alerts, 1)
	assert.Equal(t, 60, h.alerts.alerts[0].Severity)
	require.Len(t, h.audit.records, 1)
	assert.Equal(t, domain.ActionBlock, h.audit.records[0].Action)

	blocked, err := h.state.IsBlocked("sess-1")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestEnforceReportModeOnlyObserves(t *testing.T) {
	h := newGuardianHarness(func(cfg *config.GuardianConfig) { cfg.Mode = "report" })

	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorLoop, 90))

	assert.True(t, verdict.Allowed)
	assert.Empty(t, h.alerts.alerts)
	require.Len(t, h.audit.records, 1)
	assert.Equal(t, domain.ActionReport, h.audit.records[0].Action)

	blocked, err := h.state.IsBlocked("sess-1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestEnforceAutoAppliesApprovedFix(t *testing.T) {
	h := newGuardianHarness(func(cfg *config.GuardianConfig) { cfg.Mode = "auto" })

	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorLoop, 45))

	assert.True(t, verdict.Allowed)
	assert.True(t, verdict.AutoFixed)
	assert.Equal(t, domain.FixSwitchStrategy, verdict.Recommendation)
	assert.Empty(t, verdict.EscalationReason)
	require.Len(t, h.audit.records, 1)
	assert.Equal(t, domain.ActionAutoHeal, h.audit.records[0].Action)
	assert.Equal(t, 1, h.state.counts["sess-1"])
}

func TestEnforceAutoBreakLoopDeniesSevereLoop(t *testing.T) {
	h := newGuardianHarness(func(cfg *config.GuardianConfig) { cfg.Mode = "auto" })

	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorLoop, 70))

	assert.True(t, verdict.AutoFixed)
	assert.Equal(t, domain.FixBreakLoop, verdict.Recommendation)
	assert.False(t, verdict.Allowed)
}

func TestEnforceAutoEscalatesUnapprovedFix(t *testing.T) {
	h := newGuardianHarness(func(cfg *config.GuardianConfig) { cfg.Mode = "auto" })

	// Coordination maps to escalate, which is never in the approved list
	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorCoordination, 50))

	assert.False(t, verdict.Allowed)
	assert.False(t, verdict.AutoFixed)
	assert.Equal(t, domain.ReasonFixNotApproved, verdict.EscalationReason)
	require.Len(t, h.alerts.alerts, 1)
	require.Len(t, h.audit.records, 1)
	assert.Equal(t, domain.ActionEscalate, h.audit.records[0].Action)
	assert.Equal(t, domain.ReasonFixNotApproved, h.audit.records[0].Reason)

	blocked, err := h.state.IsBlocked("sess-1")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestEnforceAutoEscalatesAtFixCap(t *testing.T) {
	h := newGuardianHarness(func(cfg *config.GuardianConfig) {
		cfg.Mode = "auto"
		cfg.MaxAutoFixes = 3
	})
	h.state.counts["sess-1"] = 3

	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorLoop, 45))

	assert.False(t, verdict.Allowed)
	assert.Equal(t, domain.ReasonMaxAutoFixes, verdict.EscalationReason)
	assert.Equal(t, 3, h.state.counts["sess-1"])

	blocked, err := h.state.IsBlocked("sess-1")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestEnforceAutoBlockedFixOverridesApproval(t *testing.T) {
	h := newGuardianHarness(func(cfg *config.GuardianConfig) {
		cfg.Mode = "auto"
		cfg.BlockedFixes = []string{domain.FixSwitchStrategy}
	})

	verdict := h.service.Enforce("sess-1", analysisWith(domain.DetectorLoop, 45))

	assert.False(t, verdict.Allowed)
	assert.Equal(t, domain.ReasonFixNotApproved, verdict.EscalationReason)
}

func TestEnforceRecommendationMapping(t *testing.T) {
	tests := []struct {
		name     string
		detector string
		severity int
		want     string
	}{
		{name: "moderate loop suggests a strategy change", detector: domain.DetectorLoop, severity: 45, want: domain.FixSwitchStrategy},
		{name: "severe loop breaks", detector: domain.DetectorLoop, severity: 70, want: domain.FixBreakLoop},
		{name: "repetition breaks", detector: domain.DetectorRepetition, severity: 50, want: domain.FixBreakLoop},
		{name: "coordination escalates", detector: domain.DetectorCoordination, severity: 55, want: domain.FixEscalate},
		{name: "misuse breaks", detector: domain.DetectorToolMisuse, severity: 50, want: domain.FixBreakLoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newGuardianHarness(nil)
			verdict := h.service.Enforce("sess-1", analysisWith(tt.detector, tt.severity))
			assert.Equal(t, tt.want, verdict.Recommendation)
		})
	}
}

func TestEnforceAlertCarriesPattern(t *testing.T) {
	h := newGuardianHarness(nil)

	analysis := domain.Analysis{
		Findings: []domain.Finding{
			{
				Detector:    domain.DetectorLoop,
				Detected:    true,
				Severity:    60,
				Issues:      []string{"tool \"Grep\" called 9 times consecutively"},
				Sequence:    []string{"Grep"},
				Occurrences: 9,
			},
		},
		Severity: 60,
	}
	h.service.Enforce("sess-1", analysis)

	require.Len(t, h.alerts.alerts, 1)
	alert := h.alerts.alerts[0]
	assert.Equal(t, "sess-1", alert.SessionID)
	require.NotNil(t, alert.Pattern)
	assert.Equal(t, domain.DetectorLoop, alert.Pattern.Type)
	assert.Equal(t, []string{"Grep"}, alert.Pattern.Sequence)
	assert.Equal(t, 9, alert.Pattern.Occurrences)
}

func TestEvaluateBlockedSessionDeniesImmediately(t *testing.T) {
	h := newGuardianHarness(nil)
	h.service.detector = NewDetector(&fakeReader{}, 10)
	require.NoError(t, h.state.SetBlocked("sess-1", true))

	verdict := h.service.Evaluate(context.Background(), "sess-1")

	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Issues, "session is blocked pending approval")
}

func TestEvaluateCleanSessionAllows(t *testing.T) {
	h := newGuardianHarness(nil)
	h.service.detector = NewDetector(&fakeReader{spans: windowOf("Read", "Edit", "Bash")}, 10)

	verdict := h.service.Evaluate(context.Background(), "sess-1")

	assert.True(t, verdict.Allowed)
	assert.Equal(t, 0, verdict.Severity)
}

func TestEvaluateLoopingSessionBlocks(t *testing.T) {
	h := newGuardianHarness(nil)
	h.service.detector = NewDetector(&fakeReader{spans: repeatBash("cat secrets.txt", 6)}, 10)

	verdict := h.service.Evaluate(context.Background(), "sess-1")

	assert.False(t, verdict.Allowed)
	assert.GreaterOrEqual(t, verdict.Severity, 60)
	assert.NotEmpty(t, verdict.Issues)
}

func TestUnblockClearsState(t *testing.T) {
	h := newGuardianHarness(nil)
	require.NoError(t, h.state.SetBlocked("sess-1", true))

	require.NoError(t, h.service.Unblock("sess-1"))

	blocked, err := h.state.IsBlocked("sess-1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestUnblockUnknownSession(t *testing.T) {
	h := newGuardianHarness(nil)

	err := h.service.Unblock("never-seen")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
