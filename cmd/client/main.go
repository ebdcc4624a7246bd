// cmd/client is the CLI entry-point built with Cobra.
//
// Usage:
//
//	shoplist create "groceries" --creator alice --db alice.db
//	shoplist delete <url>                        --db alice.db
//	shoplist list                                --db alice.db
//	shoplist sync-status                         --db alice.db
//	shoplist sync                                --db alice.db --router http://localhost:9000
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shoplist/internal/clientapi"
	"shoplist/internal/clientlog"
	"shoplist/internal/clientsync"
)

var (
	dbPath     string
	routerAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "shoplist",
		Short: "CLI client for the distributed shopping list store",
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "client.db", "path to this client's durable pending-mutation log")
	root.PersistentFlags().StringVar(&routerAddr, "router", "http://localhost:9000", "router's client-channel base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "HTTP request timeout")

	root.AddCommand(createCmd(), deleteCmd(), listCmd(), syncStatusCmd(), syncCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openLog() (*clientlog.Log, error) {
	return clientlog.Open(dbPath)
}

func createCmd() *cobra.Command {
	var creator string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new shopping list, queued for sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLog()
			if err != nil {
				return err
			}
			defer l.Close()

			key := uuid.NewString()
			ctx := context.Background()
			if err := l.Create(ctx, key, args[0], creator); err != nil {
				return err
			}
			fmt.Printf("created list %q (url=%s), will sync in the background\n", args[0], key)
			return nil
		},
	}
	cmd.Flags().StringVar(&creator, "creator", "", "creator name")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <url>",
		Short: "Delete a shopping list by its url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLog()
			if err != nil {
				return err
			}
			defer l.Close()

			if err := l.Delete(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %q\n", args[0])
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every shopping list this client knows about",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLog()
			if err != nil {
				return err
			}
			defer l.Close()

			rows, err := l.All(context.Background())
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("no lists found.")
				return nil
			}
			for _, r := range rows {
				status := "synced"
				if !r.Synced {
					status = fmt.Sprintf("not synced (retries: %d)", r.RetryCount)
				}
				fmt.Printf("name: %s, creator: %s, url: %s (%s)\n", r.Name, r.Creator, r.Key, status)
			}
			return nil
		},
	}
}

func syncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-status",
		Short: "Show every list still waiting to sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLog()
			if err != nil {
				return err
			}
			defer l.Close()

			rows, err := l.Unsynced(context.Background())
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("all lists are synced.")
				return nil
			}
			for _, r := range rows {
				fmt.Printf("url: %s (not synced, retries: %d)\n", r.Key, r.RetryCount)
			}
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the background sync loop against the router until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLog()
			if err != nil {
				return err
			}
			defer l.Close()

			client := clientapi.New(routerAddr, timeout)
			engine := clientsync.New(l, client)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-quit
				cancel()
			}()

			fmt.Printf("syncing against %s every %s, ctrl-c to stop\n", routerAddr, interval)
			engine.Run(ctx, interval)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "time between sync passes")
	return cmd
}
