package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"caixa/internal/amqp"
	"caixa/internal/cache"
	"caixa/internal/config"
	"caixa/internal/core"
	"caixa/internal/export"
	"caixa/internal/ledger"
	"caixa/internal/services"
	"caixa/internal/session"
	"caixa/internal/storage"
	"caixa/internal/workflow"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is best effort on the interactive side: without a broker the
	// ledger still works, only the sheet sync and alerts stop.
	var publisher services.Publisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, running without sync", "error", err)
	} else {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	reports := cache.NewLRU[ledger.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	svc := services.NewLedgerService(repo, publisher, reports)
	machine := workflow.NewMachine(svc)
	sessions := session.NewStore[workflow.Session]()

	userID := os.Getenv("CAIXA_USER")
	if userID == "" {
		userID = "local"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	shell := &shell{
		svc:      svc,
		machine:  machine,
		sessions: sessions,
		userID:   userID,
		out:      os.Stdout,
	}
	shell.run(ctx, os.Stdin)
}

type shell struct {
	svc      *services.LedgerService
	machine  *workflow.Machine
	sessions *session.Store[workflow.Session]
	userID   string
	out      *os.File

	// awaiting is the pending prompt, used to interpret the next line.
	awaiting *workflow.Prompt
}

func (s *shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *shell) run(ctx context.Context, in *os.File) {
	s.printf("caixa ledger for %s. Type 'help' for commands.", s.userID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if s.awaiting != nil {
			s.feedFlow(ctx, line)
			continue
		}
		if !s.command(ctx, line) {
			return
		}
	}
}

// command dispatches an idle-state command line. Returns false to quit.
func (s *shell) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return false
	case "help":
		s.help()
	case "add":
		s.step(ctx, workflow.StartTransaction{})
	case "category":
		s.categoryCommand(ctx, args)
	case "goal":
		s.goalCommand(ctx, args)
	case "balance":
		if len(args) > 0 && args[0] == "set" {
			s.step(ctx, workflow.StartAdjustBalance{})
			break
		}
		balance, err := s.svc.Balance(ctx, s.userID)
		if err != nil {
			s.printf("error: %v", err)
			break
		}
		s.printf("balance: %s", formatMoney(balance))
	case "close":
		s.step(ctx, workflow.StartClosing{})
	case "erase":
		s.step(ctx, workflow.StartErase{})
	case "recent":
		s.recent(ctx, args)
	case "report":
		s.report(ctx, args)
	case "categories":
		s.listCategories(ctx, args)
	case "alerts":
		enabled, err := s.svc.ToggleLimitAlert(ctx, s.userID)
		if err != nil {
			s.printf("error: %v", err)
			break
		}
		s.printf("limit alerts: %s", onOff(enabled))
	case "reminder":
		enabled, err := s.svc.ToggleDailyReminder(ctx, s.userID)
		if err != nil {
			s.printf("error: %v", err)
			break
		}
		s.printf("daily reminder: %s", onOff(enabled))
	case "export":
		s.exportCSV(ctx, args)
	default:
		s.printf("unknown command %q, type 'help'", cmd)
	}
	return true
}

func (s *shell) help() {
	s.printf(`commands:
  add                           record a transaction
  balance                       show the current balance
  balance set                   adjust the balance manually
  recent [n]                    show the n most recent transactions
  report [today|week|month]     aggregate a period (default month)
  report <from> <to>            aggregate a custom range (YYYY-MM-DD)
  categories entry|exit         list registered categories
  category add entry|exit       register a category
  category rename entry|exit    rename a category
  category remove entry|exit    remove a category
  goal savings|limit            set a monthly goal (0 clears)
  close                         record the daily closing
  alerts                        toggle spend limit alerts
  reminder                      toggle the daily reminder
  export [file]                 export the ledger as CSV
  erase                         erase the whole ledger
  cancel                        abort the current flow
  quit`)
}

func (s *shell) categoryCommand(ctx context.Context, args []string) {
	if len(args) != 2 {
		s.printf("usage: category add|rename|remove entry|exit")
		return
	}
	dir := core.Direction(args[1])
	switch args[0] {
	case "add":
		s.step(ctx, workflow.StartAddCategory{Direction: dir})
	case "rename":
		s.step(ctx, workflow.StartRenameCategory{Direction: dir})
	case "remove":
		s.step(ctx, workflow.StartRemoveCategory{Direction: dir})
	default:
		s.printf("usage: category add|rename|remove entry|exit")
	}
}

func (s *shell) goalCommand(ctx context.Context, args []string) {
	if len(args) != 1 {
		s.printf("usage: goal savings|limit")
		return
	}
	switch args[0] {
	case "savings":
		s.step(ctx, workflow.StartSetGoal{Kind: workflow.GoalSavings})
	case "limit":
		s.step(ctx, workflow.StartSetGoal{Kind: workflow.GoalSpendLimit})
	default:
		s.printf("usage: goal savings|limit")
	}
}

// feedFlow interprets a line while a prompt is pending.
func (s *shell) feedFlow(ctx context.Context, line string) {
	if line == "cancel" {
		s.step(ctx, workflow.Cancel{})
		return
	}

	switch s.awaiting.Kind {
	case workflow.PromptDirection:
		s.step(ctx, workflow.PickDirection{Direction: core.Direction(line)})
	case workflow.PromptCategory, workflow.PromptRenameSource, workflow.PromptRemoveChoice:
		s.step(ctx, workflow.PickCategory{Name: s.resolveChoice(line)})
	case workflow.PromptConfirmTransaction, workflow.PromptRemoveConfirm,
		workflow.PromptClosingConfirm, workflow.PromptClosingReconfirm,
		workflow.PromptEraseConfirm:
		switch strings.ToLower(line) {
		case "yes", "y", "sim":
			s.step(ctx, workflow.Confirm{})
		case "no", "n", "nao", "não":
			s.step(ctx, workflow.Cancel{})
		default:
			s.printf("answer yes or no (or cancel)")
		}
	default:
		s.step(ctx, workflow.Text{Value: line})
	}
}

// resolveChoice lets the user answer a pick prompt by number.
func (s *shell) resolveChoice(line string) string {
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(s.awaiting.Choices) {
		return s.awaiting.Choices[n-1]
	}
	return line
}

func (s *shell) step(ctx context.Context, input workflow.Input) {
	sess, _ := s.sessions.Get(s.userID)
	sess, outcome := s.machine.Handle(ctx, s.userID, sess, input)
	s.sessions.Set(s.userID, sess)
	s.awaiting = nil
	s.render(outcome)
}

func (s *shell) render(outcome workflow.Outcome) {
	switch out := outcome.(type) {
	case workflow.Prompt:
		s.renderPrompt(out)
	case workflow.Rejected:
		s.printf("invalid: %v", out.Err)
		s.renderPrompt(out.Reprompt)
	case workflow.Failed:
		s.printf("failed: %v", out.Err)
	case workflow.Cancelled:
		s.printf("cancelled")
	case workflow.TransactionCommitted:
		tx := out.Result.Transaction
		s.printf("recorded %s %s (%s): %s", tx.Direction, formatMoney(tx.Amount), tx.Category, tx.Description)
		s.printf("balance: %s", formatMoney(out.Result.Balance))
		if out.Result.Goal.LimitBreached {
			s.printf("warning: monthly spending %s exceeds the limit of %s",
				formatMoney(out.Result.Goal.MonthlySpend), formatMoney(out.Result.Goal.SpendLimit))
		}
	case workflow.BalanceAdjusted:
		if out.Result.Transaction == nil {
			s.printf("balance already at %s, nothing recorded", formatMoney(out.Result.Balance))
		} else {
			s.printf("balance adjusted to %s", formatMoney(out.Result.Balance))
		}
	case workflow.CategoryAdded:
		s.printf("added %s category %q", out.Direction, out.Name)
	case workflow.CategoryRenamed:
		s.printf("renamed %q to %q (%d transactions updated)", out.From, out.To, out.Touched)
	case workflow.CategoryRemoved:
		if out.Result.Reassigned > 0 {
			s.printf("removed %q, %d transactions moved to %q", out.Name, out.Result.Reassigned, core.FallbackCategory)
		} else {
			s.printf("removed %q", out.Name)
		}
	case workflow.GoalSet:
		if out.Value.Cents == 0 {
			s.printf("%s goal cleared", out.Kind)
		} else {
			s.printf("%s goal set to %s", out.Kind, formatMoney(out.Value))
		}
	case workflow.ClosingRecorded:
		rec := out.Record
		s.printf("day %s closed: opening %s, entries %s, exits %s, closing %s",
			rec.Date, formatMoney(rec.OpeningBalance), formatMoney(rec.TotalEntries),
			formatMoney(rec.TotalExits), formatMoney(rec.ClosingBalance))
	case workflow.Erased:
		s.printf("ledger erased")
	}
}

func (s *shell) renderPrompt(p workflow.Prompt) {
	s.awaiting = &p
	switch p.Kind {
	case workflow.PromptDirection:
		s.printf("entry or exit?")
	case workflow.PromptCategory:
		s.printChoices("category?", p.Choices)
	case workflow.PromptAmount:
		s.printf("amount?")
	case workflow.PromptDescription:
		s.printf("description?")
	case workflow.PromptConfirmTransaction:
		st := p.Staged
		s.printf("record %s %s (%s): %s? [yes/no]",
			st.Direction, formatMoney(st.Amount), st.Category, st.Description)
	case workflow.PromptCategoryName:
		s.printf("new category name?")
	case workflow.PromptRenameSource:
		s.printChoices("rename which category?", p.Choices)
	case workflow.PromptRenameTarget:
		s.printf("new name?")
	case workflow.PromptRemoveChoice:
		s.printChoices("remove which category?", p.Choices)
	case workflow.PromptRemoveConfirm:
		s.printf("%d transactions use it and will move to %q. remove? [yes/no]",
			p.UsageCount, core.FallbackCategory)
	case workflow.PromptGoalValue:
		s.printf("monthly value? (0 clears)")
	case workflow.PromptBalance:
		s.printf("new balance?")
	case workflow.PromptClosingConfirm:
		c := p.Closing
		if c != nil {
			s.printf("close %s: opening %s, entries %s, exits %s, closing %s? [yes/no]",
				c.Date, formatMoney(c.OpeningBalance), formatMoney(c.TotalEntries),
				formatMoney(c.TotalExits), formatMoney(c.ClosingBalance))
		} else {
			s.printf("record the closing? [yes/no]")
		}
	case workflow.PromptClosingReconfirm:
		s.printf("today was already closed. close again? [yes/no]")
	case workflow.PromptEraseConfirm:
		s.printf("erase ALL transactions, categories and goals? [yes/no]")
	}
}

func (s *shell) printChoices(question string, choices []string) {
	s.printf("%s", question)
	for i, c := range choices {
		s.printf("  %d. %s", i+1, c)
	}
}

func (s *shell) recent(ctx context.Context, args []string) {
	n := 10
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			n = v
		}
	}
	txs, err := s.svc.Recent(ctx, s.userID, n)
	if err != nil {
		s.printf("error: %v", err)
		return
	}
	if len(txs) == 0 {
		s.printf("no transactions yet")
		return
	}
	for _, tx := range txs {
		ts := "????-??-??"
		if !tx.Timestamp.IsZero() {
			ts = tx.Timestamp.Format("2006-01-02 15:04")
		}
		sign := "+"
		if tx.Direction == core.Exit {
			sign = "-"
		}
		s.printf("%s  %s%s  %-15s %s", ts, sign, formatMoney(tx.Amount), tx.Category, tx.Description)
	}
}

func (s *shell) report(ctx context.Context, args []string) {
	now := time.Now()
	var start, end time.Time
	switch {
	case len(args) == 0 || args[0] == "month":
		start, end = ledger.MonthWindow(now)
	case args[0] == "today":
		start, end = ledger.DayWindow(now)
	case args[0] == "week":
		dayStart, dayEnd := ledger.DayWindow(now)
		start, end = dayStart.AddDate(0, 0, -6), dayEnd
	case len(args) == 2:
		var err error
		start, err = time.ParseInLocation(core.DateLayout, args[0], now.Location())
		if err != nil {
			s.printf("bad start date %q, want YYYY-MM-DD", args[0])
			return
		}
		end, err = time.ParseInLocation(core.DateLayout, args[1], now.Location())
		if err != nil {
			s.printf("bad end date %q, want YYYY-MM-DD", args[1])
			return
		}
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	default:
		s.printf("usage: report [today|week|month|<from> <to>]")
		return
	}

	rep, err := s.svc.Report(ctx, s.userID, start, end)
	if err != nil {
		s.printf("error: %v", err)
		return
	}

	s.printf("report %s to %s (%d transactions)",
		rep.Start.Format(core.DateLayout), rep.End.Format(core.DateLayout), rep.Count)
	s.printf("entries %s, exits %s, net %s",
		formatMoney(rep.TotalEntries), formatMoney(rep.TotalExits), formatMoney(rep.PeriodBalance))
	for _, dir := range []core.Direction{core.Entry, core.Exit} {
		totals := rep.ByCategory[dir]
		if len(totals) == 0 {
			continue
		}
		s.printf("%s by category:", dir)
		for _, ct := range totals {
			s.printf("  %-15s %10s  %5.1f%%", ct.Name, formatMoney(ct.Amount), ct.Percent)
		}
	}
	if g := rep.Goal; g != nil {
		if g.HasSavings {
			s.printf("savings: %.1f%% of %s", g.SavingsProgress, formatMoney(g.SavingsTarget))
		}
		if g.HasLimit {
			s.printf("spending: %.1f%% of the %s limit", g.SpendUsed, formatMoney(g.SpendLimit))
		}
	}
}

func (s *shell) listCategories(ctx context.Context, args []string) {
	if len(args) != 1 {
		s.printf("usage: categories entry|exit")
		return
	}
	names, err := s.svc.Categories(ctx, s.userID, core.Direction(args[0]))
	if err != nil {
		s.printf("error: %v", err)
		return
	}
	for _, name := range names {
		s.printf("  %s", name)
	}
}

func (s *shell) exportCSV(ctx context.Context, args []string) {
	doc, err := s.svc.Document(ctx, s.userID)
	if err != nil {
		s.printf("error: %v", err)
		return
	}
	if len(args) == 0 {
		if err := export.WriteLedgerCSV(s.out, doc); err != nil {
			s.printf("error: %v", err)
		}
		return
	}
	f, err := os.Create(args[0])
	if err != nil {
		s.printf("error: %v", err)
		return
	}
	defer f.Close()
	if err := export.WriteLedgerCSV(f, doc); err != nil {
		s.printf("error: %v", err)
		return
	}
	s.printf("exported to %s", args[0])
}

func formatMoney(m core.Money) string {
	return fmt.Sprintf("%.2f", m.Units())
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
