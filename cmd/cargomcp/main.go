package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/cargomcp"
	"github.com/fwojciec/cargomcp/cargo"
	"github.com/fwojciec/cargomcp/docindex"
	"github.com/fwojciec/cargomcp/fs"
	"github.com/fwojciec/cargomcp/goquery"
	"github.com/fwojciec/cargomcp/htmltomarkdown"
	cmotel "github.com/fwojciec/cargomcp/otel"
	"github.com/fwojciec/cargomcp/process"
	cmslog "github.com/fwojciec/cargomcp/slog"
	"github.com/fwojciec/cargomcp/sqlite"
	"go.opentelemetry.io/otel"
)

// version is set at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path used when --db is not set.
	DBPath string

	// SQLite database used by the snapshot store.
	DB *sqlite.DB

	// Orchestrator runs cargo subprocesses. Closing Main terminates its
	// live tasks.
	Orchestrator *process.Orchestrator
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
	}
}

// Close terminates running tasks and closes the database.
func (m *Main) Close() error {
	var err error
	if m.Orchestrator != nil {
		err = m.Orchestrator.Close()
	}
	if m.DB != nil {
		if cerr := m.DB.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("cargomcp"),
		kong.Description("Cargo builds, diagnostics and rustdoc lookups for language models."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'cargomcp --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cli.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cli.LogLevel, err)
	}
	// stdout carries the MCP transport, so logs always go to stderr.
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	dbPath := m.DBPath
	if cli.DB != "" {
		dbPath = cli.DB
	}
	m.DB = sqlite.NewDB(dbPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set CARGOMCP_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", dbPath, err)
	}
	defer m.Close()

	m.Orchestrator = process.NewOrchestrator()
	m.Orchestrator.GracePeriod = cli.GracePeriod
	m.Orchestrator.Retention = cli.Retention

	tasks, err := cmotel.NewMetricsOrchestrator(
		cmslog.NewLoggingOrchestrator(m.Orchestrator, logger),
		otel.GetMeterProvider().Meter("github.com/fwojciec/cargomcp"),
	)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	snapshots := cmslog.NewLoggingSnapshotStore(sqlite.NewSnapshotStore(m.DB), logger)

	svc := docindex.NewService()
	svc.Hasher = fs.NewHasher()
	svc.Metadata = cargo.NewMetadataReader(cli.Cargo)
	svc.Reader = goquery.NewReader()
	svc.Converter = htmltomarkdown.NewConverter()
	svc.Orchestrator = tasks
	svc.Store = snapshots
	svc.DocCommand = func(root cargomcp.ProjectRoot) cargomcp.Command {
		return cargo.DocCommand(cli.Cargo, root, cli.DocTimeout)
	}

	deps.Logger = logger
	deps.ProjectDir = cli.ProjectDir
	deps.Cargo = cli.Cargo
	deps.Locator = fs.NewLocator()
	deps.Index = cmslog.NewLoggingDocIndex(svc, logger)
	deps.Orchestrator = tasks
	deps.Snapshots = snapshots

	return kongCtx.Run(deps)
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cargomcp.db"
	}
	dir := filepath.Join(home, ".cargomcp")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "index.db")
}
