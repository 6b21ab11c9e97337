// Command taskflow-watch runs one board session in a terminal: it connects
// the event channel, keeps the local caches fresh, polls notifications, and
// prints alerts and a periodic view of the board.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/internal/client"
	"taskflow/internal/events"
	"taskflow/internal/models"
	"taskflow/internal/util"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	serverFlag := flag.String("server", util.EnvOrDefault("TASKFLOW_SERVER_URL", "http://localhost:8080"), "Base URL of the taskflow server")
	userFlag := flag.String("user", util.EnvOrDefault("TASKFLOW_USER_ID", ""), "User id this session acts as")
	viewFlag := flag.String("view", "all", "Board view: all, mine, created or overdue")
	pollFlag := flag.Duration("poll", 30*time.Second, "Notification poll interval")
	flag.Parse()

	if *userFlag == "" {
		return fmt.Errorf("a user id is required (-user or TASKFLOW_USER_ID)")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	wsURL, err := eventChannelURL(*serverFlag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := client.NewAPI(*serverFlag, *userFlag)

	cache := client.NewCache(logger)
	cache.Register(client.CacheKeyTasks, func(ctx context.Context) (any, error) {
		return api.ListTasks(ctx, "", "")
	})
	cache.Register(client.CacheKeyUsers, func(ctx context.Context) (any, error) {
		return api.ListUsers(ctx)
	})
	cache.Register(client.CacheKeyNotifications, func(ctx context.Context) (any, error) {
		return api.ListNotifications(ctx)
	})
	cache.OnError(func(key string, err error) {
		// Keep the last good snapshot; just tell the user the refresh failed.
		fmt.Printf("! could not refresh %s, showing last known data\n", key)
		logger.Warn("fetch failed", slog.String("key", key), slog.String("error", err.Error()))
	})

	conn := events.Dial(ctx, wsURL, logger)
	defer conn.Close()

	bridge := client.NewBridge(conn, cache, *userFlag, func(a client.Alert) {
		fmt.Printf("* %s: %s\n", a.Title, a.Body)
	}, logger)
	detach := bridge.Attach(ctx)
	defer detach()

	poller := client.NewPoller(cache, *pollFlag)
	poller.Start(ctx)
	defer poller.Stop()

	// Initial load; failures fall back to the error hook path.
	for _, key := range []string{client.CacheKeyTasks, client.CacheKeyUsers, client.CacheKeyNotifications} {
		_ = cache.Refetch(ctx, key)
	}
	printBoard(cache, *userFlag, client.View(*viewFlag))

	render := time.NewTicker(10 * time.Second)
	defer render.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-render.C:
			printBoard(cache, *userFlag, client.View(*viewFlag))
		case <-quit:
			logger.Info("session ending")
			return nil
		}
	}
}

// eventChannelURL turns the HTTP base URL into the websocket endpoint.
func eventChannelURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.JoinPath("api/events").String(), nil
}

func printBoard(cache *client.Cache, userID string, view client.View) {
	var tasks []models.Task
	if v, _ := cache.Get(client.CacheKeyTasks); v != nil {
		tasks = v.([]models.Task)
	}
	var notes []models.Notification
	if v, _ := cache.Get(client.CacheKeyNotifications); v != nil {
		notes = v.([]models.Notification)
	}

	visible := client.FilterTasks(tasks, userID, view, time.Now())
	fmt.Printf("-- board (%s): %d task(s), %d unread notification(s)\n",
		view, len(visible), models.UnreadCount(notes))
	for _, t := range visible {
		due := ""
		if t.DueDate != nil {
			due = " due " + t.DueDate.Format("2006-01-02")
		}
		fmt.Printf("  [%s/%s] %s%s\n", t.Status, t.Priority, t.Title, due)
	}
}
