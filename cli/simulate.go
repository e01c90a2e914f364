package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/emberforge/scriptflow"
	"github.com/emberforge/scriptflow/bus"
	"github.com/emberforge/scriptflow/interp"
	"github.com/emberforge/scriptflow/loader"
	sfotel "github.com/emberforge/scriptflow/otel"
	"github.com/emberforge/scriptflow/registry"
	"github.com/emberforge/scriptflow/script"
)

// NewSimulateCmd creates the "simulate" subcommand: a headless tick loop
// over one or more graph files, with no host engine attached.
func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <file...>",
		Short: "Run behavior graphs headlessly for a fixed number of ticks",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSimulate,
	}

	cmd.Flags().Int("ticks", 600, "Number of simulation ticks to run")
	cmd.Flags().Duration("tick-rate", 0, "Simulated frame duration (default $SCRIPTFLOW_TICK_RATE or 16ms)")
	cmd.Flags().StringArray("set-flag", nil, "Set a flag before the first tick (repeatable)")
	cmd.Flags().StringArray("set-var", nil, "Set a variable as name=value before the first tick (repeatable)")
	cmd.Flags().String("snapshot-in", "", "Import interpreter state from a JSON snapshot before ticking")
	cmd.Flags().String("snapshot-out", "", "Export interpreter state to a JSON snapshot after ticking")
	cmd.Flags().String("room", "", "Room the simulated player stands in (answers OnEnterRoom)")
	cmd.Flags().StringArray("plate", nil, "Pressure plate held active for the whole run (repeatable)")
	cmd.Flags().StringArray("defeated", nil, "Enemy treated as already defeated (repeatable)")
	cmd.Flags().String("event-db", "", "SQLite file for the event journal (default $SCRIPTFLOW_EVENT_DB)")
	cmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for chain traces (default $SCRIPTFLOW_OTEL_ENDPOINT)")
	cmd.Flags().Bool("events", false, "Print every interpreter event to stdout")

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := LoadConfigFromEnv()
	out := cmd.OutOrStdout()

	ticks, _ := cmd.Flags().GetInt("ticks")
	tickRate, _ := cmd.Flags().GetDuration("tick-rate")
	if tickRate <= 0 {
		tickRate = cfg.TickRate
	}

	graphs, err := loadSimulateGraphs(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg.LogLevel)

	reg := registry.NewWithBuiltins()
	script.Register(reg)

	opts := []interp.Option{
		interp.WithLogger(logger),
		interp.WithRegistry(reg),
		interp.WithFacade(newSimFacade(cmd, logger)),
	}

	// Event distribution: a memory bus feeds the optional SQLite journal.
	memBus := bus.NewMemBus(bus.MemBusConfig{})
	defer memBus.Close()
	opts = append(opts, interp.WithEventBus(memBus))

	closeJournal, err := attachJournal(cmd, cfg, memBus, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	handlers, shutdownTracing, err := buildEventHandlers(cmd, cfg, out)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	var counts eventCounts
	handlers = append(handlers, counts.handle)
	opts = append(opts, interp.WithEventHandler(interp.MultiEventHandler(handlers...)))

	it := interp.New(opts...)
	it.LoadAll(graphs)

	if err := applyInitialState(cmd, it); err != nil {
		return err
	}

	it.Start()
	ctx := cmd.Context()
	for t := 0; t < ticks; t++ {
		if err := ctx.Err(); err != nil {
			break
		}
		it.Tick(ctx, tickRate)
	}
	it.Wait()
	it.Stop()

	if err := writeSnapshot(cmd, it); err != nil {
		return err
	}

	fmt.Fprintf(out, "simulated %d ticks (%s of game time): %d triggers fired, %d chains run, %d node failures\n",
		ticks, it.Clock(), counts.triggers.Load(), counts.chains.Load(), counts.failures.Load())
	return nil
}

// loadSimulateGraphs loads and lints every file. Lint errors abort; lint
// warnings are printed and tolerated, matching the executor's own policy.
func loadSimulateGraphs(cmd *cobra.Command, args []string) ([]*scriptflow.Graph, error) {
	var graphs []*scriptflow.Graph
	for _, filePath := range args {
		doc, err := loader.Load(filePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, exitError(exitFileNotFound, "file not found: %s", filePath)
			}
			return nil, exitError(exitValidation, "loading %s: %v", filePath, err)
		}

		diags := loader.Lint(doc)
		if loader.HasErrors(diags) {
			printDiagnosticsText(cmd.ErrOrStderr(), diags)
			return nil, exitError(exitValidation, "validation failed: %s", filePath)
		}
		for _, d := range loader.Warnings(diags) {
			fmt.Fprintf(cmd.ErrOrStderr(), "WARNING [%s]: %s\n", d.Code, d.Message)
		}

		g, err := loader.ToGraph(doc)
		if err != nil {
			return nil, exitError(exitValidation, "building %s: %v", filePath, err)
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}

// attachJournal wires a SQLite event store behind the bus when requested.
func attachJournal(cmd *cobra.Command, cfg Config, memBus *bus.MemBus, logger *slog.Logger) (func(), error) {
	dbPath, _ := cmd.Flags().GetString("event-db")
	if dbPath == "" {
		dbPath = cfg.EventDBPath
	}
	if dbPath == "" {
		return func() {}, nil
	}

	store, err := bus.NewSQLiteEventStore(bus.SQLiteStoreConfig{DSN: dbPath})
	if err != nil {
		return nil, exitError(exitRuntime, "opening event journal: %v", err)
	}

	subscriber := bus.NewStoreSubscriber(store, logger)
	sub := memBus.SubscribeAll()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range sub.Events() {
			subscriber.Handle(e)
		}
	}()

	return func() {
		_ = sub.Close()
		<-done
		_ = store.Close()
	}, nil
}

// buildEventHandlers assembles the direct event handlers: the optional
// stdout printer and the optional OTel tracing handler.
func buildEventHandlers(cmd *cobra.Command, cfg Config, out io.Writer) ([]interp.EventHandler, func(), error) {
	var handlers []interp.EventHandler
	shutdown := func() {}

	if printEvents, _ := cmd.Flags().GetBool("events"); printEvents {
		handlers = append(handlers, printingEventHandler(out))
	}

	endpoint, _ := cmd.Flags().GetString("otel-endpoint")
	if endpoint == "" {
		endpoint = cfg.OTelEndpoint
	}
	if endpoint != "" {
		tracer, stop, err := sfotel.SetupTracing(cmd.Context(), sfotel.ExporterConfig{
			Endpoint: endpoint,
			Insecure: true,
		})
		if err != nil {
			return nil, nil, exitError(exitRuntime, "setting up tracing: %v", err)
		}
		tracing := sfotel.NewTracingHandler(tracer)
		handlers = append(handlers, tracing.Handle)
		shutdown = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = stop(ctx)
		}
	}

	return handlers, shutdown, nil
}

// simFacade answers world queries from command line flags so graphs that
// depend on engine state can run headlessly. Effects inherit NoopFacade's
// debug logging.
type simFacade struct {
	scriptflow.NoopFacade

	room     string
	plates   map[string]bool
	defeated map[string]bool
}

func newSimFacade(cmd *cobra.Command, logger *slog.Logger) *simFacade {
	f := &simFacade{
		NoopFacade: scriptflow.NoopFacade{Logger: logger},
		plates:     make(map[string]bool),
		defeated:   make(map[string]bool),
	}
	f.room, _ = cmd.Flags().GetString("room")
	plates, _ := cmd.Flags().GetStringArray("plate")
	for _, p := range plates {
		f.plates[p] = true
	}
	defeated, _ := cmd.Flags().GetStringArray("defeated")
	for _, d := range defeated {
		f.defeated[d] = true
	}
	return f
}

func (f *simFacade) IsPlayerInRoom(roomID string) bool {
	return f.room != "" && f.room == roomID
}

func (f *simFacade) IsPressurePlateActive(plateID string) bool {
	return f.plates[plateID]
}

func (f *simFacade) IsEnemyDefeated(enemyID string) bool {
	return f.defeated[enemyID]
}

func printingEventHandler(out io.Writer) interp.EventHandler {
	return func(e interp.Event) {
		if e.NodeID != "" {
			fmt.Fprintf(out, "[%06d] %-16s graph=%s node=%s kind=%s\n", e.Seq, e.Kind, e.GraphID, e.NodeID, e.NodeKind)
			return
		}
		fmt.Fprintf(out, "[%06d] %-16s tick=%d clock=%s\n", e.Seq, e.Kind, e.Tick, e.Clock)
	}
}

// eventCounts tallies headline numbers for the end-of-run summary.
type eventCounts struct {
	triggers atomic.Int64
	chains   atomic.Int64
	failures atomic.Int64
}

func (c *eventCounts) handle(e interp.Event) {
	switch e.Kind {
	case interp.EventTriggerFired:
		c.triggers.Add(1)
	case interp.EventChainFinished:
		c.chains.Add(1)
	case interp.EventNodeFailed:
		c.failures.Add(1)
	}
}

// applyInitialState applies --snapshot-in, --set-flag, and --set-var.
func applyInitialState(cmd *cobra.Command, it *interp.Interpreter) error {
	if snapPath, _ := cmd.Flags().GetString("snapshot-in"); snapPath != "" {
		data, err := os.ReadFile(snapPath) // #nosec G304 -- path from user CLI flag
		if err != nil {
			return exitError(exitFileNotFound, "reading snapshot: %v", err)
		}
		if err := it.ImportStateJSON(data); err != nil {
			return exitError(exitInputParse, "importing snapshot: %v", err)
		}
	}

	flags, _ := cmd.Flags().GetStringArray("set-flag")
	for _, name := range flags {
		it.SetFlag(name, true)
	}

	vars, _ := cmd.Flags().GetStringArray("set-var")
	for _, kv := range vars {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return exitError(exitInputParse, "invalid --set-var %q (want name=value)", kv)
		}
		it.SetVariable(parts[0], parts[1])
	}

	return nil
}

func writeSnapshot(cmd *cobra.Command, it *interp.Interpreter) error {
	snapPath, _ := cmd.Flags().GetString("snapshot-out")
	if snapPath == "" {
		return nil
	}
	data, err := scriptflow.EncodeSnapshot(it.ExportState())
	if err != nil {
		return exitError(exitRuntime, "encoding snapshot: %v", err)
	}
	if err := os.WriteFile(snapPath, append(data, '\n'), 0600); err != nil {
		return exitError(exitRuntime, "writing snapshot: %v", err)
	}
	return nil
}

// newLogger builds a text slog logger at the configured level, respecting
// the root --verbose and --quiet flags.
func newLogger(cmd *cobra.Command, level string) *slog.Logger {
	lvl := parseLevel(level)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		lvl = slog.LevelDebug
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
