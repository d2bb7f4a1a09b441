// companion is a terminal client for the MindHaven companion service:
// realtime chat with the assistant plus subscription management.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mindhaven/companion/internal/api"
	"github.com/mindhaven/companion/internal/chat"
	"github.com/mindhaven/companion/internal/config"
	"github.com/mindhaven/companion/internal/identity"
	"github.com/mindhaven/companion/internal/store"
	"github.com/mindhaven/companion/internal/subscription"
)

func main() {
	// Logs go to stderr so the conversation stays readable on stdout.
	level := slog.LevelWarn
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelWarn
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open local cache", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close local cache", "error", closeErr)
		}
	}()

	client := api.NewClient(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.RequestTimeout})

	mgr := chat.NewSessionManager(chat.NewWebSocketTransport(), chat.SessionConfig{
		URL:         cfg.SocketURL + "/ws",
		DialTimeout: cfg.Chat.DialTimeout,
		Reconnection: chat.Reconnection{
			Enabled:     cfg.Chat.ReconnectEnabled,
			MaxAttempts: cfg.Chat.MaxReconnects,
			BaseDelay:   cfg.Chat.ReconnectBase,
			MaxDelay:    cfg.Chat.ReconnectMax,
		},
	})
	mgr.SetStore(repo)
	mgr.SetHistoryLoader(client)
	mgr.SetMessageFunc(func(msg chat.Message) {
		fmt.Printf("\rcompanion: %s\n> ", msg.Content)
	})
	mgr.SetTypingFunc(func(typing bool) {
		if typing {
			fmt.Print("\rcompanion is typing...")
		} else {
			fmt.Print("\r                      \r> ")
		}
	})

	purchaseKey := cfg.Purchase.APIKey
	if purchaseKey == "" && cfg.Purchase.UseTestStore {
		purchaseKey = "test_store"
	}
	rec := subscription.NewReconciler(subscription.NewMemoryProvider(), purchaseKey)
	rec.SetStore(repo)
	rec.SetOpener(func(url string) {
		fmt.Printf("Manage your subscription at: %s\n", url)
	})

	idp := identity.NewProvider()
	idp.Subscribe(func(id string) { client.SetUserID(id) })
	idp.Subscribe(mgr.OnIdentityChanged)
	idp.Subscribe(rec.OnIdentityChanged)

	userID := os.Getenv("COMPANION_USER")
	if userID == "" {
		userID = "dev-user"
	}
	idp.Set(userID)

	if err := mgr.LoadHistory(context.Background()); err != nil {
		slog.Warn("Could not load conversation history", "error", err)
	}
	for _, msg := range mgr.Messages() {
		who := "you"
		if msg.Role == chat.RoleAssistant {
			who = "companion"
		}
		fmt.Printf("%s: %s\n", who, msg.Content)
	}

	fmt.Printf("Signed in as %s. Type a message, or /help for commands.\n", userID)
	repl(mgr, rec, idp)

	mgr.Disconnect()
	fmt.Println("Goodbye.")
}

func repl(mgr *chat.SessionManager, rec *subscription.Reconciler, idp *identity.Provider) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if !mgr.SendMessage(line) {
				fmt.Println("Could not send message (empty text or signed out).")
			}
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/help":
			fmt.Println(`Commands:
  /status              connection and subscription status
  /offerings           available subscription plans
  /purchase <plan>     buy a plan (monthly or yearly)
  /restore             restore previous purchases
  /manage              open the subscription management page
  /read                mark the conversation as read
  /signin <user>       switch identity
  /signout             sign out
  /quit                exit`)
		case "/status":
			printStatus(mgr, rec)
		case "/offerings":
			printOfferings(rec)
		case "/purchase":
			purchase(rec, arg)
		case "/restore":
			res := rec.Restore(context.Background())
			if res.Success {
				fmt.Println(res.Message)
			} else {
				fmt.Printf("Restore failed: %s\n", res.Error)
			}
		case "/manage":
			rec.Manage(context.Background())
		case "/read":
			mgr.MarkAsRead()
			fmt.Println("Conversation marked as read.")
		case "/signin":
			if arg == "" {
				fmt.Println("Usage: /signin <user>")
				continue
			}
			idp.Set(arg)
			fmt.Printf("Signed in as %s.\n", arg)
		case "/signout":
			idp.Clear()
			fmt.Println("Signed out.")
		case "/quit", "/exit":
			return
		default:
			fmt.Printf("Unknown command %s. Try /help.\n", cmd)
		}
	}
}

func printStatus(mgr *chat.SessionManager, rec *subscription.Reconciler) {
	fmt.Printf("Connection: %s (%d unread)\n", mgr.State(), mgr.Unread())

	s := rec.Standing()
	fmt.Printf("Subscription: %s\n", s.Status)
	if s.PlanName != "" {
		fmt.Printf("  Plan: %s %s\n", s.PlanName, s.Price)
	}
	if s.TrialDaysRemaining != nil {
		fmt.Printf("  Trial days remaining: %d\n", *s.TrialDaysRemaining)
	}
	if s.NextBillingDate != "" {
		fmt.Printf("  Next billing date: %s\n", s.NextBillingDate)
	}
	if s.ExpirationDate != "" {
		fmt.Printf("  Expires: %s\n", s.ExpirationDate)
	}
	if err := rec.Err(); err != nil {
		fmt.Printf("  Provider error: %v\n", err)
	}
}

func printOfferings(rec *subscription.Reconciler) {
	pkgs, err := rec.LoadOfferings(context.Background())
	if err != nil {
		fmt.Printf("Could not load offerings: %v\n", err)
		return
	}
	if len(pkgs) == 0 {
		fmt.Println("No plans available.")
		return
	}
	for _, p := range pkgs {
		fmt.Printf("  %s: %s %s (%s)\n", p.PlanType, p.Product.Title, p.Price, p.PricePerMonth)
	}
}

func purchase(rec *subscription.Reconciler, arg string) {
	var plan subscription.PlanType
	switch arg {
	case "monthly":
		plan = subscription.PlanMonthly
	case "yearly":
		plan = subscription.PlanYearly
	default:
		fmt.Println("Usage: /purchase monthly|yearly")
		return
	}

	res := rec.Purchase(context.Background(), plan)
	switch {
	case res.Success:
		fmt.Println("Purchase complete. Thank you!")
	case res.Error == subscription.ErrorCancelled:
		fmt.Println("Purchase cancelled.")
	default:
		fmt.Printf("Purchase failed: %s\n", res.Error)
	}
}
