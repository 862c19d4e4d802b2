package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/doeshing/opsguard/internal/application/doctor"
	"github.com/doeshing/opsguard/internal/application/operations"
	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/config"
	"github.com/doeshing/opsguard/internal/infrastructure/confirmation"
	"github.com/doeshing/opsguard/internal/infrastructure/executor"
	"github.com/doeshing/opsguard/internal/infrastructure/ledger"
	"github.com/doeshing/opsguard/internal/infrastructure/rollback"
	"github.com/doeshing/opsguard/internal/infrastructure/security"
	"github.com/doeshing/opsguard/internal/pkg/logger"
	"github.com/doeshing/opsguard/internal/ports"
)

// Options tunes container construction from command-line flags.
type Options struct {
	ConfigPath string
	Verbose    bool
	DryRun     bool
	// LogOutput receives log lines when no log file is configured.
	LogOutput io.Writer
	Renderer  ports.PromptRenderer
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config        domain.Config
	ConfigLoader  *config.FileLoader
	Rules         *security.RuleRepository
	Assessor      *security.Assessor
	Gateway       *confirmation.Gateway
	Ledger        ports.AuditLedger
	Operations    *operations.Service
	DoctorService *doctor.Service
	Logger        *logger.Logger

	closers []io.Closer
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		cfg.Execution.DryRun = true
	}

	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	}
	logOutput := opts.LogOutput
	if logOutput == nil {
		logOutput = os.Stderr
	}
	log, logCloser, err := logger.Open(cfg.Logging.File, level, logOutput)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	rules, err := security.LoadRuleRepository(cfg.Security.RulesFile)
	if err != nil {
		// A broken user rules file must not leave the gateway without rules.
		log.Error("rules file unusable, using built-in rules", err, map[string]interface{}{"path": cfg.Security.RulesFile})
		rules, err = security.NewDefaultRuleRepository()
		if err != nil {
			logCloser.Close()
			return nil, err
		}
	}
	assessor := security.NewAssessor(rules, security.PolicyFromConfig(cfg))

	auditLedger, err := ledger.Open(domain.LedgerSettings{Backend: cfg.GetLedgerBackend(), Path: cfg.Ledger.Path}, nil)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open audit ledger: %w", err)
	}

	gateway := confirmation.NewGateway(cfg.GetConfirmationTimeout(), confirmation.WithLogger(log))
	exec := executor.NewLocalExecutor(cfg.GetExecutionShell(),
		executor.WithTimeout(cfg.GetCommandTimeout()),
		executor.WithDryRun(cfg.Execution.DryRun),
	)

	ops := &operations.Service{
		ConfigProvider:  staticProvider{cfg: cfg},
		SecurityService: assessor,
		Gateway:         gateway,
		Renderer:        opts.Renderer,
		Executor:        exec,
		Synthesizer:     rollback.NewSynthesizer(),
		Ledger:          auditLedger,
		Runner:          exec,
		Limiter:         operations.NewLimiter(cfg.GetMaxConcurrent()),
		Logger:          log,
		DryRun:          cfg.Execution.DryRun,
	}

	doctorService := &doctor.Service{
		ConfigProvider:  cfgLoader,
		Rules:           rules,
		SecurityService: assessor,
		Ledger:          auditLedger,
	}

	return &Container{
		Config:        cfg,
		ConfigLoader:  cfgLoader,
		Rules:         rules,
		Assessor:      assessor,
		Gateway:       gateway,
		Ledger:        auditLedger,
		Operations:    ops,
		DoctorService: doctorService,
		Logger:        log,
		closers:       []io.Closer{auditLedger, logCloser},
	}, nil
}

// Close releases the ledger and log file.
func (c *Container) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// staticProvider serves the configuration resolved at startup, including
// flag overrides, so every operation in a process sees the same policy.
type staticProvider struct {
	cfg domain.Config
}

func (p staticProvider) Load(context.Context) (domain.Config, error) {
	return p.cfg, nil
}
