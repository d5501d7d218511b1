package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/watch"
	"github.com/flexcrow/escrowctl/internal/cli"
)

func cmdDashboard(ctx context.Context, e *env, args []string) error {
	if _, err := parse(e.flags("dashboard"), args); err != nil {
		return err
	}
	ctx, s, err := e.session(ctx)
	if err != nil {
		return err
	}

	spin := cli.NewSpinner("loading dashboard")
	spin.Start()
	defer spin.Stop()

	if s.Role == user.RoleAdmin {
		t, err := e.app.Dashboard.Admin(ctx)
		spin.Stop()
		if err != nil {
			return err
		}
		return e.printer.Print(t, cli.Fields(
			"Users", fmt.Sprint(t.Users),
			"Products", fmt.Sprint(t.Products),
			"Transactions", fmt.Sprint(t.Transactions),
			"Payments", fmt.Sprint(t.Payments),
			"Withdrawals", fmt.Sprint(t.Withdrawals),
			"Addresses", fmt.Sprint(t.Addresses),
			"Files", fmt.Sprint(t.Files),
		))
	}

	sum, err := e.app.Dashboard.Member(ctx)
	spin.Stop()
	if err != nil {
		return err
	}
	return e.printer.Print(sum, cli.Fields(
		"Purchases", fmt.Sprint(sum.Purchases),
		"Sales", fmt.Sprint(sum.Sales),
		"Completed purchases", sum.PurchaseAmount.StringFixed(2),
		"Completed sales", sum.SalesAmount.StringFixed(2),
		"Balance", sum.Balance.StringFixed(2),
	))
}

// cmdWatch polls until interrupted, printing one line (or one JSON object)
// per change.
func cmdWatch(ctx context.Context, e *env, args []string) error {
	fs := e.flags("watch")
	schedule := fs.String("schedule", e.cfg.Watch.Schedule, "poll schedule (cron spec or @every <duration>)")
	addr := fs.String("metrics-addr", e.cfg.Watch.MetricsAddr, "serve /metrics and /healthz on this address")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	e.cfg.Watch.Schedule = *schedule

	enc := json.NewEncoder(e.stdout)
	onChange := func(c watch.Change) {
		if e.printer.Machine() {
			_ = enc.Encode(c)
			return
		}
		from := c.From.Label
		if from == "" {
			from = "new"
		}
		fmt.Fprintf(e.stdout, "%s  %-12s %-7s %s -> %s\n", c.At.Local().Format("15:04:05"), c.TransactionID, c.Party,
			from, cli.Colorize(c.To.Label, cli.StatusColor(c.To.Status)))
	}
	if _, err := e.app.Watch(onChange, *addr); err != nil {
		return err
	}
	if err := e.app.Start(ctx); err != nil {
		return err
	}
	cli.Info(e.stderr, "watching transactions ("+*schedule+"); press Ctrl+C to stop")
	if *addr != "" {
		cli.Info(e.stderr, "metrics on http://"+*addr+"/metrics")
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.app.Stop(stopCtx)
}
