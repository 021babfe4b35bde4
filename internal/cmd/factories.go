package cmd

import (
	"path/filepath"

	adapteralert "vigia/internal/adapters/alert"
	adapterguardstate "vigia/internal/adapters/guardstate"
	adapterhook "vigia/internal/adapters/hook"
	adapterredact "vigia/internal/adapters/redact"
	adapterstorage "vigia/internal/adapters/storage"
	"vigia/internal/config"
	"vigia/internal/ports"
	"vigia/internal/services"
)

// Container holds all dependencies for the application
type Container struct {
	// Services
	CaptureService  *services.CaptureService
	Detector        *services.Detector
	GuardianService *services.GuardianService
	Sequencer       *services.Sequencer
	UsageService    *services.UsageService

	// Adapters shared by commands
	AppendLog  *adapterstorage.AppendLog
	GuardState ports.GuardStateStore
	TraceRepo  ports.TraceRepository
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer(settings *config.Settings) (*Container, error) {
	dataDir := config.GetDataDir()
	if settings.DataDir != "" {
		dataDir = config.ExpandPath(settings.DataDir)
	}

	dbPath := filepath.Join(dataDir, "traces.db")
	if settings.DBPath != "" {
		dbPath = config.ExpandPath(settings.DBPath)
	}

	tracesDir := filepath.Join(dataDir, "traces")
	if settings.TracesDir != "" {
		tracesDir = config.ExpandPath(settings.TracesDir)
	}

	// Create adapters
	traceRepo, err := adapterstorage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, err
	}

	appendLog, err := adapterstorage.NewAppendLog(tracesDir)
	if err != nil {
		traceRepo.Close()
		return nil, err
	}

	normalizer := adapterhook.NewNormalizer()
	tokenizer := adapterredact.NewTokenizer(false)
	guardState := adapterguardstate.NewStore(filepath.Join(dataDir, "guard_state.json"))
	alertWriter := adapteralert.NewWriter(
		filepath.Join(dataDir, "alert.json"),
		filepath.Join(dataDir, "audit_log.jsonl"),
	)

	// Create services
	guardianCfg := settings.Guardian.Resolve()
	sequencer := services.NewSequencer()
	captureService := services.NewCaptureService(normalizer, sequencer, tokenizer, traceRepo, appendLog)
	detector := services.NewDetector(traceRepo, guardianCfg.PatternWindow)
	guardianService := services.NewGuardianService(guardianCfg, detector, guardState, alertWriter, alertWriter)
	usageService := services.NewUsageService(appendLog)

	return &Container{
		CaptureService:  captureService,
		Detector:        detector,
		GuardianService: guardianService,
		Sequencer:       sequencer,
		UsageService:    usageService,
		AppendLog:       appendLog,
		GuardState:      guardState,
		TraceRepo:       traceRepo,
	}, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.TraceRepo != nil {
		return c.TraceRepo.Close()
	}
	return nil
}
