package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dirjobs/am"
	"github.com/teranos/dirjobs/directory"
	"github.com/teranos/dirjobs/directory/events"
	"github.com/teranos/dirjobs/directory/jobs"
	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/logger"
	"github.com/teranos/dirjobs/pulse/async"
	"github.com/teranos/dirjobs/pulse/monitor"
	"github.com/teranos/dirjobs/sym"
)

// PulseCmd represents the pulse command - job scheduling
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: sym.Pulse + " Run directory jobs and inspect job history",
	Long: sym.Pulse + ` Pulse - directory job coordinator.

Pulse admits a job only when no running job of the same type holds an
overlapping lock, opens the connections the job requires, and batches the
change events of bulk jobs into one notification.

Example:
  dirjobs pulse demo                # Run simulated jobs against two servers
  dirjobs pulse demo --entries 20   # Larger batches
  dirjobs pulse history --limit 20  # Show finished jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// PulseDemoCmd runs simulated jobs
var PulseDemoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run simulated jobs against in-memory directory connections",
	Long: `Run a set of simulated jobs:

- two bulk modify jobs on the same server (the second waits for the first)
- one bulk modify job on another server (runs alongside)
- one close-connections job once the modify jobs are done

Each job reports progress to the terminal. Event counts show that bulk
jobs deliver one consolidated event per batch.`,
	RunE: runPulseDemo,
}

// PulseHistoryCmd lists finished jobs
var PulseHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished jobs recorded in the history database",
	RunE:  runPulseHistory,
}

func init() {
	PulseDemoCmd.Flags().Int("entries", 5, "Entries modified per job")
	PulseDemoCmd.Flags().Duration("latency", 50*time.Millisecond, "Simulated latency per directory operation")
	PulseDemoCmd.Flags().String("config", "", "Config file to load and watch for throttling changes")
	PulseDemoCmd.Flags().String("db", "", "History database path (default: database.path)")

	PulseHistoryCmd.Flags().Int("limit", 20, "Maximum number of jobs to list")
	PulseHistoryCmd.Flags().String("status", "", "Only list jobs with this status")
	PulseHistoryCmd.Flags().String("db", "", "History database path (default: database.path)")

	PulseCmd.AddCommand(PulseDemoCmd)
	PulseCmd.AddCommand(PulseHistoryCmd)
}

func loadConfig(path string) (*am.Config, error) {
	if path != "" {
		return am.LoadFromFile(path)
	}
	return am.Load()
}

func runPulseDemo(cmd *cobra.Command, args []string) error {
	entries, _ := cmd.Flags().GetInt("entries")
	latency, _ := cmd.Flags().GetDuration("latency")
	configPath, _ := cmd.Flags().GetString("config")
	dbPath, _ := cmd.Flags().GetString("db")
	verbosity, _ := cmd.Flags().GetCount("verbose")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := async.Options{}
	if cfg.Pulse.HistoryEnabled {
		database, err := openDatabase(cfg, dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		opts.History = async.NewHistoryStore(database)
	}

	scheduler := async.NewScheduler(ctx, async.ConfigFromAm(cfg), logger.Logger, opts)

	if configPath != "" {
		watcher, err := am.NewConfigWatcher(configPath)
		if err != nil {
			logger.Warnw("Config watching disabled", "path", configPath, "error", err)
		} else {
			watcher.OnReload(scheduler.ApplyConfig)
			watcher.Start()
			defer watcher.Stop()
		}
	}

	counts := newEventCounter()
	unsubscribe := scheduler.Events().Subscribe(counts.record)
	defer unsubscribe()
	scheduler.Listeners().Add(linkPrinter{})

	scheduler.Start()

	primary := directory.NewSimulatedConnection("primary", "ldap.example.com", 389)
	replica := directory.NewSimulatedConnection("replica", "ldap-replica.example.com", 389)
	for _, c := range []*directory.SimulatedConnection{primary, replica} {
		c.Latency = latency
	}

	pterm.DefaultHeader.Println(sym.Pulse + " dirjobs demo")

	type submitted struct {
		label  string
		handle *async.Handle
	}
	var handles []submitted
	submit := func(label string, desc async.Descriptor) error {
		h, err := scheduler.Submit(desc, async.WithMonitor(NewCLISink(label, verbosity)))
		if err != nil {
			return err
		}
		pterm.Info.Printf("Submitted %s (%s) locks=%v\n", label, desc.Name, h.LockIDs())
		handles = append(handles, submitted{label: label, handle: h})
		return nil
	}

	if err := submit("modify-1", jobs.ModifyEntries(primary, demoDNs("people", entries), scheduler.Events())); err != nil {
		return err
	}
	if err := submit("modify-2", jobs.ModifyEntries(primary, demoDNs("groups", entries), scheduler.Events())); err != nil {
		return err
	}
	if err := submit("modify-3", jobs.ModifyEntries(replica, demoDNs("people", entries), scheduler.Events())); err != nil {
		return err
	}

	for _, s := range handles {
		if err := s.handle.Wait(ctx); err != nil {
			break
		}
	}

	if ctx.Err() == nil {
		closeDesc := jobs.CloseConnections(
			[]directory.Connection{primary, replica},
			scheduler.Listeners(),
			scheduler.Events(),
		)
		if err := submit("close", closeDesc); err != nil {
			return err
		}
		_ = handles[len(handles)-1].handle.Wait(ctx)
	}

	metrics := scheduler.Metrics()
	if err := scheduler.Stop(); err != nil {
		return err
	}

	pterm.Println()
	data := pterm.TableData{{"Job", "Status", "Result", "External result"}}
	for _, s := range handles {
		result, _ := s.handle.Result()
		external, _ := s.handle.ExternalResult()
		data = append(data, []string{s.label, string(s.handle.Status()), result.String(), external.String()})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return errors.Wrap(err, "failed to render results")
	}

	pterm.Println()
	pterm.Printf("Events dispatched: %s  suppressed during batches: %s\n",
		pterm.Green(fmt.Sprintf("%d", metrics.EventsDispatched)),
		pterm.Yellow(fmt.Sprintf("%d", metrics.EventsDropped)))
	for _, kind := range counts.kinds() {
		pterm.Printf("  %s: %d\n", kind, counts.count(kind))
	}
	return nil
}

func runPulseHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	status, _ := cmd.Flags().GetString("status")
	dbPath, _ := cmd.Flags().GetString("db")

	if status != "" && !async.IsValidStatus(status) {
		return errors.NewInvalidRequestError("unknown status %q", status)
	}

	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	database, err := openDatabase(cfg, dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := async.NewHistoryStore(database).List(cmd.Context(), async.JobStatus(status), limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		pterm.Info.Println("No finished jobs recorded")
		return nil
	}

	data := pterm.TableData{{"Finished", "Name", "Type", "Status", "Result", "Duration", "Message"}}
	for _, r := range records {
		data = append(data, []string{
			r.FinishedAt.Local().Format(time.DateTime),
			r.Name,
			r.JobType,
			string(r.Status),
			r.ExternalResult,
			r.Duration().Round(time.Millisecond).String(),
			r.Message,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func demoDNs(ou string, n int) []string {
	dns := make([]string, n)
	for i := range dns {
		dns[i] = fmt.Sprintf("cn=user%02d,ou=%s,dc=example,dc=com", i+1, ou)
	}
	return dns
}

// linkPrinter prints connection lifecycle notifications
type linkPrinter struct{}

func (linkPrinter) ConnectionOpened(conn directory.Connection, _ monitor.Monitor) {
	pterm.Printf("%s %s opened\n", sym.Link, pterm.LightGreen(directory.Describe(conn)))
}

func (linkPrinter) ConnectionClosed(conn directory.Connection, _ monitor.Monitor) {
	pterm.Printf("%s %s closed\n", sym.Link, pterm.LightMagenta(directory.Describe(conn)))
}

// eventCounter tallies dispatched events by kind
type eventCounter struct {
	mu     sync.Mutex
	counts map[events.Kind]int
	order  []events.Kind
}

func newEventCounter() *eventCounter {
	return &eventCounter{counts: make(map[events.Kind]int)}
}

func (c *eventCounter) record(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.counts[ev.Kind]; !seen {
		c.order = append(c.order, ev.Kind)
	}
	c.counts[ev.Kind]++
}

func (c *eventCounter) kinds() []events.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Kind(nil), c.order...)
}

func (c *eventCounter) count(kind events.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}
