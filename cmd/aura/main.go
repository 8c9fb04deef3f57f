package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/aura-detect/aura/internal/api"
	"github.com/aura-detect/aura/internal/callback"
	"github.com/aura-detect/aura/internal/config"
	"github.com/aura-detect/aura/internal/entitlement"
	"github.com/aura-detect/aura/internal/models"
	"github.com/aura-detect/aura/internal/session"
	"github.com/aura-detect/aura/internal/supabase"
	"github.com/aura-detect/aura/internal/workflow"
	"github.com/aura-detect/aura/pkg/logger"
)

const usage = `Usage: aura <command> [flags]

Commands:
  login           Sign in with email and password
  logout          Sign out and discard the local session
  whoami          Show the signed-in user and plan
  recover         Request a password recovery email
  detect          Analyze text (from -text, -file or stdin)
  history         List past detections
  dashboard       Show usage statistics
  upgrade         Start the premium checkout flow
  billing         Open the billing portal
  sync            Re-sync the plan with the payment provider
  delete-account  Permanently delete the account
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	app := newApp(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "login":
		return app.login(ctx, rest)
	case "logout":
		return app.logout(ctx)
	case "whoami":
		return app.whoami(ctx)
	case "recover":
		return app.recover(ctx, rest)
	case "detect":
		return app.detect(ctx, rest)
	case "history":
		return app.history(ctx, rest)
	case "dashboard":
		return app.dashboard(ctx)
	case "upgrade":
		return app.upgrade(ctx)
	case "billing":
		return app.billing(ctx)
	case "sync":
		return app.sync(ctx)
	case "delete-account":
		return app.deleteAccount(ctx, rest)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// app wires the configuration into the client stack once per invocation.
type app struct {
	cfg      *config.Config
	out      io.Writer
	log      *slog.Logger
	provider *supabase.Client
	sessions *session.Store
	backend  *api.Client
	profiles *entitlement.Fetcher

	detectWF    *workflow.DetectWorkflow
	historyWF   *workflow.HistoryWorkflow
	dashboardWF *workflow.DashboardWorkflow
	billingWF   *workflow.BillingWorkflow
	reconcileWF *workflow.ReconcileWorkflow
}

func newApp(cfg *config.Config) *app {
	log := logger.New()

	provider := supabase.NewClientWithTimeout(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.RequestTimeout)
	sessions := session.NewStore(provider, cfg.SessionFile, log)
	backend := api.NewClientWithTimeout(cfg.APIEndpoint, cfg.RequestTimeout)
	profiles := entitlement.NewFetcher(provider)

	a := &app{
		cfg:      cfg,
		out:      os.Stdout,
		log:      log,
		provider: provider,
		sessions: sessions,
		backend:  backend,
		profiles: profiles,
	}
	a.detectWF = workflow.NewDetectWorkflow(backend, log)
	a.historyWF = workflow.NewHistoryWorkflow(backend, cfg.HistoryPageLimit, log)
	a.detectWF.OnSuccess(a.historyWF.Invalidate)
	a.dashboardWF = workflow.NewDashboardWorkflow(backend, profiles, cfg.RecentDetectionsLimit, log)
	a.billingWF = workflow.NewBillingWorkflow(backend, browserNavigator{out: a.out}, log)
	a.reconcileWF = workflow.NewReconcileWorkflow(backend, sessions, log)
	return a
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("login requires -email")
	}

	password := os.Getenv("AURA_PASSWORD")
	if password == "" {
		fmt.Fprint(a.out, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	sess, err := a.provider.SignInWithPassword(ctx, *email, password)
	if err != nil {
		return err
	}
	a.sessions.SetSession(sess)
	fmt.Fprintf(a.out, "Signed in as %s\n", sess.User.Email)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.sessions.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	sess := a.sessions.Current(ctx)
	if sess == nil {
		return workflow.ErrNotAuthenticated
	}
	profile, err := a.profiles.FetchProfile(ctx, sess)
	if err != nil {
		return a.classifyProfileErr(err)
	}

	fmt.Fprintf(a.out, "User:  %s\n", sess.User.Email)
	fmt.Fprintf(a.out, "Plan:  %s\n", profile.Plan)
	fmt.Fprintf(a.out, "Usage: %d requests\n", profile.RequestCount)
	if profile.PlanExpiresAt != nil {
		fmt.Fprintf(a.out, "Until: %s\n", profile.PlanExpiresAt.Format("2006-01-02"))
	}
	return nil
}

func (a *app) recover(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("recover requires -email")
	}
	if err := a.provider.RequestPasswordRecovery(ctx, *email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Recovery email sent")
	return nil
}

func (a *app) detect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	text := fs.String("text", "", "text to analyze")
	file := fs.String("file", "", "read text from file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input, err := readInput(*text, *file)
	if err != nil {
		return err
	}

	sess := a.sessions.Current(ctx)
	result, err := a.detectWF.Submit(ctx, sess, input)
	if err != nil {
		return err
	}

	verdict := "human-written"
	if result.IsAI {
		verdict = "AI-generated"
	}
	fmt.Fprintf(a.out, "Verdict:    %s\n", verdict)
	fmt.Fprintf(a.out, "Score:      %s%% (%s confidence)\n",
		models.FormatScore(result.Score), models.Confidence(result.Score))

	if result.DetailedAnalysis == nil {
		fmt.Fprintln(a.out, "Analysis:   (premium feature)")
		return nil
	}
	if len(result.DetailedAnalysis) == 0 {
		fmt.Fprintln(a.out, "Analysis:   no notable sentences")
		return nil
	}
	fmt.Fprintln(a.out, "Analysis:")
	for _, item := range result.DetailedAnalysis {
		fmt.Fprintf(a.out, "  %q\n      %s\n", item.Sentence, item.Reason)
	}
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	all := fs.Bool("all", false, "fetch every page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess := a.sessions.Current(ctx)
	if err := a.historyWF.EnsureLoaded(ctx, sess); err != nil {
		return err
	}
	if *all {
		for a.historyWF.Snapshot().HasMore {
			if err := a.historyWF.LoadMore(ctx, sess); err != nil {
				return err
			}
		}
	}

	snap := a.historyWF.Snapshot()
	if len(snap.Items) == 0 {
		fmt.Fprintln(a.out, "No detections yet")
		return nil
	}
	for _, d := range snap.Items {
		verdict := "human"
		if d.IsAI {
			verdict = "AI"
		}
		fmt.Fprintf(a.out, "%s  %-6s %s%%  %s\n",
			d.CreatedAt.Format("2006-01-02 15:04"), verdict,
			models.FormatScore(d.Score), excerpt(d.InputText, 60))
	}
	if snap.HasMore {
		fmt.Fprintln(a.out, "(more available, use -all)")
	}
	return nil
}

func (a *app) dashboard(ctx context.Context) error {
	sess := a.sessions.Current(ctx)
	data, err := a.dashboardWF.Load(ctx, sess)
	if err != nil {
		return a.classifyProfileErr(err)
	}

	fmt.Fprintf(a.out, "Plan:              %s\n", data.Profile.Plan)
	fmt.Fprintf(a.out, "Total requests:    %d\n", data.Stats.TotalRequests)
	fmt.Fprintf(a.out, "AI detection rate: %s%%\n", models.FormatScore(data.Stats.AIDetectionRate))
	fmt.Fprintf(a.out, "Average score:     %s%%\n", models.FormatScore(data.Stats.AverageScore))

	if len(data.Stats.DailyActivity) > 0 {
		fmt.Fprintln(a.out, "Daily activity:")
		for _, day := range data.Stats.DailyActivity {
			fmt.Fprintf(a.out, "  %s  %d\n", day.Date, day.Count)
		}
	}
	if len(data.Recent) > 0 {
		fmt.Fprintln(a.out, "Recent detections:")
		for _, d := range data.Recent {
			fmt.Fprintf(a.out, "  %s  %s\n",
				d.CreatedAt.Format("2006-01-02 15:04"), excerpt(d.InputText, 50))
		}
	}
	return nil
}

func (a *app) upgrade(ctx context.Context) error {
	sess := a.sessions.Current(ctx)
	if sess == nil {
		return workflow.ErrNotAuthenticated
	}

	srv := callback.NewServer(a.cfg.CallbackListenAddr, a.reconcileWF, a.log)
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := a.billingWF.StartUpgrade(ctx, sess); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Waiting for the checkout to finish in the browser...")
	res, err := srv.Wait(ctx)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	if !res.Completed {
		fmt.Fprintln(a.out, "Checkout canceled")
		return nil
	}
	fmt.Fprintln(a.out, "Upgrade complete")
	return nil
}

func (a *app) billing(ctx context.Context) error {
	sess := a.sessions.Current(ctx)
	if sess == nil {
		return workflow.ErrNotAuthenticated
	}
	profile, err := a.profiles.FetchProfile(ctx, sess)
	if err != nil {
		return a.classifyProfileErr(err)
	}
	if err := a.billingWF.ManageBilling(ctx, sess, profile); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Billing portal opened; run `aura sync` after making changes")
	return nil
}

func (a *app) sync(ctx context.Context) error {
	if err := a.reconcileWF.SyncPlan(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Plan synced")
	return nil
}

func (a *app) deleteAccount(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	confirmed := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess := a.sessions.Current(ctx)
	if sess == nil {
		return workflow.ErrNotAuthenticated
	}

	if !*confirmed {
		fmt.Fprintf(a.out, "This permanently deletes the account %s. Type the email to confirm: ", sess.User.Email)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		if strings.TrimSpace(line) != sess.User.Email {
			return errors.New("confirmation did not match, aborting")
		}
	}

	if err := a.backend.DeleteAccount(ctx, sess.AccessToken); err != nil {
		return err
	}
	a.sessions.Clear()
	fmt.Fprintln(a.out, "Account deleted")
	return nil
}

// classifyProfileErr turns the deleted-account condition into a forced
// sign-out; everything else passes through for a later retry.
func (a *app) classifyProfileErr(err error) error {
	if entitlement.IsDeleted(err) {
		a.sessions.Clear()
		return errors.New("アカウントが削除されました。サービスの利用を継続することはできません。")
	}
	return err
}

func readInput(text, file string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// browserNavigator opens URLs in the system browser, printing the URL as a
// fallback so a headless session can still proceed by hand.
type browserNavigator struct {
	out io.Writer
}

func (n browserNavigator) Navigate(url string) error {
	fmt.Fprintf(n.out, "Opening %s\n", url)
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(n.out, "Could not open a browser; visit the URL above manually")
	}
	return nil
}
