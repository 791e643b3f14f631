package reason

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmuras/medic/internal/providers"
	"github.com/tmuras/medic/internal/retry"
)

type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
	seen      []providers.ChatRequest
}

func (s *scriptedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	idx := s.calls
	s.calls++
	s.seen = append(s.seen, req)
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	content := ""
	if idx < len(s.responses) {
		content = s.responses[idx]
	}
	return &providers.ChatResponse{Content: content}, nil
}

func (s *scriptedProvider) TestConnection(ctx context.Context) error { return nil }
func (s *scriptedProvider) Name() string                             { return "scripted" }

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
}

func TestParse_Diagnose(t *testing.T) {
	plan, err := Parse("The disk may be full.\nDIAGNOSE: df -h")
	require.NoError(t, err)
	assert.Equal(t, ActionCommand, plan.Action)
	assert.Equal(t, "df -h", plan.Command)
}

func TestParse_Remediate(t *testing.T) {
	plan, err := Parse("Old logs are consuming space.\nREMEDIATE: rm -rf /var/log/old")
	require.NoError(t, err)
	assert.Equal(t, ActionRemediation, plan.Action)
	assert.Equal(t, "rm -rf /var/log/old", plan.Command)
}

func TestParse_Conclude(t *testing.T) {
	plan, err := Parse("CONCLUDE: The root cause was log rotation being disabled.\nRe-enable logrotate.")
	require.NoError(t, err)
	assert.Equal(t, ActionConclude, plan.Action)
	assert.Contains(t, plan.Analysis, "log rotation being disabled")
	assert.Contains(t, plan.Analysis, "Re-enable logrotate")
}

func TestParse_LastDirectiveWins(t *testing.T) {
	content := "Earlier I ran:\nDIAGNOSE: df -h\nNow I am confident.\nREMEDIATE: systemctl restart nginx"
	plan, err := Parse(content)
	require.NoError(t, err)
	assert.Equal(t, ActionRemediation, plan.Action)
	assert.Equal(t, "systemctl restart nginx", plan.Command)
}

func TestParse_NoDirective(t *testing.T) {
	_, err := Parse("I think you should look at the disk usage.")
	require.Error(t, err)
}

func TestParse_EmptyDirectiveIgnored(t *testing.T) {
	_, err := Parse("DIAGNOSE:")
	require.Error(t, err)
}

func TestPlanNext_Success(t *testing.T) {
	p := &scriptedProvider{responses: []string{"DIAGNOSE: free -m"}}
	planner := New(p, fastRetry())

	plan, err := planner.PlanNext(context.Background(), "server is slow", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionCommand, plan.Action)
	assert.Equal(t, "free -m", plan.Command)
}

func TestPlanNext_HistoryInTranscript(t *testing.T) {
	p := &scriptedProvider{responses: []string{"CONCLUDE: memory exhausted"}}
	planner := New(p, fastRetry())

	history := []Step{
		{
			Command: "DIAGNOSE: free -m",
			Verdict: "read-only",
			Outcome: "exit 0",
			Output:  "Mem: 15Gi used of 16Gi",
		},
		{
			Command: "REMEDIATE: systemctl restart app",
			Verdict: "mutating",
			Outcome: "not-run",
			Note:    "declined by operator",
		},
	}

	_, err := planner.PlanNext(context.Background(), "oom kills", history)
	require.NoError(t, err)

	require.Len(t, p.seen, 1)
	msgs := p.seen[0].Messages
	// issue + 2 * (assistant, user)
	require.Len(t, msgs, 5)
	assert.Contains(t, msgs[0].Content, "oom kills")
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Contains(t, msgs[2].Content, "15Gi")
	assert.Contains(t, msgs[4].Content, "declined by operator")
}

func TestPlanNext_RetriesUnparseableResponse(t *testing.T) {
	p := &scriptedProvider{responses: []string{"let me think...", "DIAGNOSE: uptime"}}
	planner := New(p, fastRetry())

	plan, err := planner.PlanNext(context.Background(), "issue", nil)
	require.NoError(t, err)
	assert.Equal(t, "uptime", plan.Command)
	assert.Equal(t, 2, p.calls)
}

func TestPlanNext_ProviderErrorAfterRetries(t *testing.T) {
	apiErr := &providers.APIError{Provider: "openai", StatusCode: 500, Message: "internal"}
	p := &scriptedProvider{errs: []error{apiErr, apiErr, apiErr}}
	planner := New(p, fastRetry())

	_, err := planner.PlanNext(context.Background(), "issue", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, 3, p.calls)
}

func TestPlanNext_RateLimited(t *testing.T) {
	apiErr := &providers.APIError{Provider: "openai", StatusCode: 429, Message: "slow down"}
	p := &scriptedProvider{errs: []error{apiErr, apiErr, apiErr}}
	planner := New(p, fastRetry())

	_, err := planner.PlanNext(context.Background(), "issue", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
}
