// Package watch polls the caller's transactions on a cron schedule and
// reports progress changes between polls.
package watch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/metrics"
	"github.com/flexcrow/escrowctl/internal/app/system"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

var _ system.Service = (*Watcher)(nil)

const (
	DefaultSchedule = "@every 30s"
	pollPerPage     = 100
	pollTimeout     = 20 * time.Second
)

// Lister reads transaction pages.
type Lister interface {
	ListTransactions(ctx context.Context, opts api.ListOptions) (api.Page[transaction.Transaction], error)
}

// State is the part of a transaction the watcher compares.
type State struct {
	Status transaction.Status `json:"status"`
	Step   transaction.Step   `json:"step"`
	Label  string             `json:"label"`
}

// Change is one transaction moving between polls. From is the zero State
// for transactions that appeared since the previous poll.
type Change struct {
	TransactionID string            `json:"transaction_id"`
	Party         transaction.Party `json:"party"`
	From          State             `json:"from"`
	To            State             `json:"to"`
	At            time.Time         `json:"at"`
}

// Watcher is a lifecycle-managed poller.
type Watcher struct {
	api      Lister
	schedule string
	onChange func(Change)
	log      *logger.Logger
	now      func() time.Time

	polling sync.Mutex
	mu      sync.Mutex
	seen    map[string]State
	seeded  bool
	lastErr error
	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a watcher. onChange is called from the polling goroutine for
// every change after the first poll.
func New(client Lister, schedule string, onChange func(Change), log *logger.Logger) *Watcher {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if onChange == nil {
		onChange = func(Change) {}
	}
	if log == nil {
		log = logger.NewDefault("watch")
	}
	return &Watcher{
		api:      client,
		schedule: schedule,
		onChange: onChange,
		log:      log,
		now:      time.Now,
		seen:     make(map[string]State),
	}
}

func (w *Watcher) Name() string { return "transaction-watcher" }

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.schedule, func() { w.tick(runCtx) }); err != nil {
		w.mu.Unlock()
		cancel()
		return fmt.Errorf("watch schedule %q: %w", w.schedule, err)
	}
	w.cron = c
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	// Seed right away so the first scheduled poll can already report.
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.tick(runCtx)
	}()
	c.Start()

	w.log.WithField("schedule", w.schedule).Info("transaction watcher started")
	return nil
}

func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	c, cancel := w.cron, w.cancel
	w.running = false
	w.cron, w.cancel = nil, nil
	w.mu.Unlock()

	cancel()
	jobs := c.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-jobs.Done()
		w.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.log.Info("transaction watcher stopped")
	return nil
}

func (w *Watcher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()
	changes, err := w.Poll(ctx)
	if err != nil {
		w.log.WithError(err).Warn("transaction watch poll failed")
		return
	}
	for _, ch := range changes {
		w.onChange(ch)
	}
}

// Poll reads the caller's purchases and sales and returns what changed
// since the previous successful poll. The first poll only records state.
func (w *Watcher) Poll(ctx context.Context) ([]Change, error) {
	w.polling.Lock()
	defer w.polling.Unlock()

	current := make(map[string]State)
	parties := make(map[string]transaction.Party)
	for _, side := range []struct {
		party transaction.Party
		opts  api.ListOptions
	}{
		{transaction.PartyBuyer, api.ListOptions{CustomerID: api.Current}},
		{transaction.PartySeller, api.ListOptions{UserID: api.Current}},
	} {
		txs, err := w.all(ctx, side.opts)
		if err != nil {
			metrics.RecordWatchPoll(false)
			err = fmt.Errorf("list %s transactions: %w", side.party, err)
			w.mu.Lock()
			w.lastErr = err
			w.mu.Unlock()
			return nil, err
		}
		counts := make(map[string]int)
		for _, tx := range txs {
			st := State{Status: tx.Status, Step: transaction.DeriveStep(tx), Label: transaction.Label(tx)}
			current[tx.ID] = st
			parties[tx.ID] = side.party
			counts[st.Label]++
		}
		metrics.SetWatchCounts(string(side.party), counts)
	}
	metrics.RecordWatchPoll(true)

	w.mu.Lock()
	defer w.mu.Unlock()
	var changes []Change
	if w.seeded {
		at := w.now()
		for id, st := range current {
			prev, ok := w.seen[id]
			if ok && prev.Status == st.Status && prev.Step == st.Step {
				continue
			}
			changes = append(changes, Change{TransactionID: id, Party: parties[id], From: prev, To: st, At: at})
			metrics.RecordWatchChange(st.Label)
		}
		sort.Slice(changes, func(i, j int) bool { return changes[i].TransactionID < changes[j].TransactionID })
	}
	w.seen = current
	w.seeded = true
	w.lastErr = nil
	return changes, nil
}

// Health returns the error of the latest poll, if it failed.
func (w *Watcher) Health(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Watcher) all(ctx context.Context, opts api.ListOptions) ([]transaction.Transaction, error) {
	var out []transaction.Transaction
	opts.RecordPerPage = pollPerPage
	for page := 1; ; page++ {
		opts.Page = page
		res, err := w.api.ListTransactions(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if len(res.Items) == 0 || len(out) >= res.TotalCount {
			return out, nil
		}
	}
}
