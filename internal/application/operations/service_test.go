package operations

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/confirmation"
	"github.com/doeshing/opsguard/internal/infrastructure/ledger"
	"github.com/doeshing/opsguard/internal/infrastructure/rollback"
	"github.com/doeshing/opsguard/internal/infrastructure/security"
)

type staticConfig struct{ cfg domain.Config }

func (s staticConfig) Load(context.Context) (domain.Config, error) { return s.cfg, nil }

func defaultConfig() domain.Config {
	return domain.Config{Security: domain.SecuritySettings{EnableRiskAssessment: true, RequireConfirmation: true}}
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []domain.ToolCall
	failAt  int
	block   chan struct{}
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeExecutor) Execute(ctx context.Context, call domain.ToolCall) (domain.ExecutionResult, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	index := len(f.calls)
	f.mu.Unlock()
	if f.failAt > 0 && index == f.failAt {
		err := errors.New("exit status 1")
		return domain.ExecutionResult{ToolCall: call, Err: err}, err
	}
	return domain.ExecutionResult{ToolCall: call, Success: true, Duration: time.Millisecond}, nil
}

func (f *fakeExecutor) executed() []domain.ToolCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ToolCall(nil), f.calls...)
}

type fakeRunner struct {
	mu   sync.Mutex
	ran  []string
	fail map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, command string) (domain.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, command)
	if f.fail[command] {
		return domain.ExecutionResult{Command: command}, errors.New("failed")
	}
	return domain.ExecutionResult{Command: command, Success: true}, nil
}

type failingLedger struct{ *ledger.MemoryLedger }

func (failingLedger) Append(context.Context, domain.OperationRecord) (string, error) {
	return "", errors.New("disk full")
}

type recordingLogger struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, msg)
}

func (l *recordingLogger) Debug(msg string, _ map[string]interface{})          { l.record(msg) }
func (l *recordingLogger) Info(msg string, _ map[string]interface{})           { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ map[string]interface{})           { l.record(msg) }
func (l *recordingLogger) Error(msg string, _ error, _ map[string]interface{}) { l.record(msg) }

func (l *recordingLogger) has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == msg {
			return true
		}
	}
	return false
}

type decide domain.Decision

func (d decide) Present(_ context.Context, _ domain.ConfirmationRequest, resolve func(domain.Decision)) error {
	resolve(domain.Decision(d))
	return nil
}

type silent struct{}

func (silent) Present(ctx context.Context, _ domain.ConfirmationRequest, _ func(domain.Decision)) error {
	<-ctx.Done()
	return nil
}

type fixture struct {
	svc    *Service
	exec   *fakeExecutor
	runner *fakeRunner
	ledger *ledger.MemoryLedger
	log    *recordingLogger
}

func newFixture(t *testing.T, cfg domain.Config) *fixture {
	t.Helper()
	rules, err := security.NewDefaultRuleRepository()
	require.NoError(t, err)
	f := &fixture{
		exec:   &fakeExecutor{},
		runner: &fakeRunner{},
		ledger: ledger.NewMemoryLedger(nil),
		log:    &recordingLogger{},
	}
	f.svc = &Service{
		ConfigProvider:  staticConfig{cfg},
		SecurityService: security.NewAssessor(rules, security.PolicyFromConfig(cfg)),
		Gateway:         confirmation.NewGateway(time.Second),
		Renderer:        decide(domain.DecisionApproved),
		Executor:        f.exec,
		Synthesizer:     rollback.NewSynthesizer(),
		Ledger:          f.ledger,
		Runner:          f.runner,
		Limiter:         NewLimiter(domain.DefaultMaxConcurrent),
		Logger:          f.log,
	}
	return f
}

func restart(service string) domain.ToolCall {
	return domain.NewToolCall(domain.ToolManageService, "action", "restart", "service", service)
}

func TestRunApprovedRestartIsRecordedWithRollback(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	outcome, err := f.svc.Run(ctx, domain.OperationRequest{SessionID: "s1", UserInput: "restart nginx", ToolCalls: []domain.ToolCall{restart("nginx")}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, outcome.Status)
	assert.Equal(t, domain.DecisionApproved, outcome.Decision)
	assert.Equal(t, domain.RiskMedium, outcome.Assessment.Level)
	assert.Equal(t, []string{"systemctl stop nginx"}, outcome.RollbackCommands)
	require.NotEmpty(t, outcome.OperationID)

	rec, err := f.ledger.Get(ctx, outcome.OperationID)
	require.NoError(t, err)
	assert.True(t, rec.Success)
	assert.Equal(t, "restart nginx", rec.UserInput)
	assert.Equal(t, domain.RiskMedium, rec.RiskLevel)
	assert.Equal(t, []string{"systemctl stop nginx"}, rec.RollbackCommands)
	assert.Len(t, f.exec.executed(), 1)
}

func TestRunBlockedNeverExecutesOrRecords(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	outcome, err := f.svc.Run(ctx, domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{
		domain.NewToolCall(domain.ToolExecuteCommand, "command", "rm -rf /"),
	}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlocked, outcome.Status)
	assert.True(t, outcome.Assessment.Blocked)
	assert.NotEmpty(t, outcome.Assessment.Reasons)
	assert.Empty(t, f.exec.executed())
	n, _ := f.ledger.Count(ctx)
	assert.Zero(t, n)
}

func TestRunBlockedEvenWhenAssessmentDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.EnableRiskAssessment = false
	f := newFixture(t, cfg)

	outcome, err := f.svc.Run(context.Background(), domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{
		domain.NewToolCall(domain.ToolExecuteCommand, "command", "rm -rf /"),
	}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlocked, outcome.Status)
	assert.Empty(t, f.exec.executed())
}

func TestRunAssessmentDisabledSkipsConfirmation(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.EnableRiskAssessment = false
	f := newFixture(t, cfg)
	f.svc.Renderer = decide(domain.DecisionDenied)

	outcome, err := f.svc.Run(context.Background(), domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("nginx")}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, outcome.Status)
	assert.Empty(t, outcome.Decision)
}

func TestRunConfirmationNotRequiredByConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.RequireConfirmation = false
	f := newFixture(t, cfg)
	f.svc.Renderer = decide(domain.DecisionDenied)

	outcome, err := f.svc.Run(context.Background(), domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("nginx")}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, outcome.Status)
}

func TestRunDeniedIsNotExecuted(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.svc.Renderer = decide(domain.DecisionDenied)

	outcome, err := f.svc.Run(context.Background(), domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{
		domain.NewToolCall(domain.ToolManageService, "action", "stop", "service", "ssh"),
	}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDenied, outcome.Status)
	assert.Equal(t, domain.RiskHigh, outcome.Assessment.Level)
	assert.Empty(t, f.exec.executed())
	assert.True(t, f.log.has("operation denied"))
}

func TestRunTimedOutIsDistinctFromDenied(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.svc.Gateway = confirmation.NewGateway(20 * time.Millisecond)
	f.svc.Renderer = silent{}

	outcome, err := f.svc.Run(context.Background(), domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("nginx")}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusTimedOut, outcome.Status)
	assert.Equal(t, domain.DecisionTimedOut, outcome.Decision)
	assert.Empty(t, f.exec.executed())
}

func TestRunLowRiskSkipsConfirmation(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.svc.Renderer = nil

	outcome, err := f.svc.Run(context.Background(), domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{
		domain.NewToolCall(domain.ToolGetSystemInfo),
	}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, outcome.Status)
	assert.Empty(t, outcome.RollbackCommands)
	assert.Empty(t, outcome.RollbackNote)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.exec.failAt = 2
	ctx := context.Background()

	outcome, err := f.svc.Run(ctx, domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{
		domain.NewToolCall(domain.ToolManageService, "action", "start", "service", "app"),
		restart("nginx"),
		restart("redis"),
	}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, outcome.Status)
	assert.Len(t, f.exec.executed(), 2)
	assert.Equal(t, []string{"systemctl stop app"}, outcome.RollbackCommands)

	rec, err := f.ledger.Get(ctx, outcome.OperationID)
	require.NoError(t, err)
	assert.False(t, rec.Success)
}

func TestRunWithoutKnownInverseStillRecords(t *testing.T) {
	f := newFixture(t, defaultConfig())

	outcome, err := f.svc.Run(context.Background(), domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{
		domain.NewToolCall(domain.ToolExecuteCommand, "command", "apt-get install -y htop"),
	}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, outcome.Status)
	assert.Contains(t, outcome.RollbackNote, "manual rollback required")
	assert.NotEmpty(t, outcome.OperationID)
}

func TestRunAuditFailureStillReturnsOutcome(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.svc.Ledger = failingLedger{ledger.NewMemoryLedger(nil)}

	outcome, err := f.svc.Run(context.Background(), domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("nginx")}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, outcome.Status)
	assert.Error(t, outcome.AuditError)
	assert.Empty(t, outcome.OperationID)
	assert.True(t, f.log.has("audit append failed"))
}

func TestRunConcurrentConfirmationInSameSession(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.svc.Gateway = confirmation.NewGateway(5 * time.Second)
	presented := make(chan struct{})
	var once sync.Once
	f.svc.Renderer = rendererFunc(func(ctx context.Context, _ domain.ConfirmationRequest, _ func(domain.Decision)) error {
		once.Do(func() { close(presented) })
		<-ctx.Done()
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan domain.OperationOutcome, 1)
	go func() {
		outcome, _ := f.svc.Run(ctx, domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("nginx")}})
		first <- outcome
	}()
	<-presented

	_, err := f.svc.Run(context.Background(), domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("redis")}})
	assert.ErrorIs(t, err, domain.ErrConcurrentConfirmation)

	cancel()
	assert.Equal(t, domain.StatusDenied, (<-first).Status)
	assert.Empty(t, f.exec.executed())
}

type rendererFunc func(ctx context.Context, req domain.ConfirmationRequest, resolve func(domain.Decision)) error

func (f rendererFunc) Present(ctx context.Context, req domain.ConfirmationRequest, resolve func(domain.Decision)) error {
	return f(ctx, req, resolve)
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.svc.Limiter = NewLimiter(2)
	f.exec.block = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Run(context.Background(), domain.OperationRequest{ToolCalls: []domain.ToolCall{
				domain.NewToolCall(domain.ToolGetSystemInfo),
			}})
			assert.NoError(t, err)
		}()
	}

	assert.Eventually(t, func() bool { return f.svc.Limiter.InFlight() == 2 }, time.Second, 5*time.Millisecond)
	close(f.exec.block)
	wg.Wait()

	assert.LessOrEqual(t, f.exec.peak.Load(), int32(2))
	assert.Len(t, f.exec.executed(), 6)
}

func TestRunRejectsEmptyOperation(t *testing.T) {
	f := newFixture(t, defaultConfig())
	_, err := f.svc.Run(context.Background(), domain.OperationRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRollbackRunsStoredCommandsAndMarksRecord(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	outcome, err := f.svc.Run(ctx, domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("nginx")}})
	require.NoError(t, err)

	report, err := f.svc.Rollback(ctx, outcome.OperationID)

	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, []string{"systemctl stop nginx"}, f.runner.ran)
	rec, err := f.ledger.Get(ctx, outcome.OperationID)
	require.NoError(t, err)
	assert.True(t, rec.RolledBack)

	again, err := f.svc.Rollback(ctx, outcome.OperationID)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Len(t, f.runner.ran, 1)
}

func TestRollbackFailureLeavesRecordUnmarked(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.runner.fail = map[string]bool{"systemctl stop nginx": true}
	ctx := context.Background()
	outcome, err := f.svc.Run(ctx, domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("nginx")}})
	require.NoError(t, err)

	report, err := f.svc.Rollback(ctx, outcome.OperationID)

	require.NoError(t, err)
	assert.False(t, report.Succeeded())
	assert.Contains(t, report.Failed, "systemctl stop nginx")
	rec, _ := f.ledger.Get(ctx, outcome.OperationID)
	assert.False(t, rec.RolledBack)
}

func TestRollbackLastNewestFirst(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	for _, svc := range []string{"nginx", "redis"} {
		_, err := f.svc.Run(ctx, domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart(svc)}})
		require.NoError(t, err)
	}

	reports, err := f.svc.RollbackLast(ctx, 2)

	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, []string{"systemctl stop redis", "systemctl stop nginx"}, f.runner.ran)

	_, err = f.svc.RollbackLast(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRollbackUnknownOperation(t *testing.T) {
	f := newFixture(t, defaultConfig())
	_, err := f.svc.Rollback(context.Background(), "op_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunDryRunLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.svc.DryRun = true
	ctx := context.Background()

	outcome, err := f.svc.Run(ctx, domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("nginx")}})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, outcome.Status)
	assert.True(t, outcome.DryRun)
	assert.Empty(t, outcome.OperationID)
	assert.Equal(t, []string{"systemctl stop nginx"}, outcome.RollbackCommands)
	records, err := f.ledger.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.True(t, f.log.has("dry run finished, not recorded"))
}

func TestRollbackDryRunLeavesRecordUnmarked(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	outcome, err := f.svc.Run(ctx, domain.OperationRequest{SessionID: "s1", ToolCalls: []domain.ToolCall{restart("nginx")}})
	require.NoError(t, err)
	f.svc.DryRun = true

	report, err := f.svc.Rollback(ctx, outcome.OperationID)

	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.True(t, report.Succeeded())
	assert.Equal(t, []string{"systemctl stop nginx"}, f.runner.ran)
	rec, err := f.ledger.Get(ctx, outcome.OperationID)
	require.NoError(t, err)
	assert.False(t, rec.RolledBack)
}
