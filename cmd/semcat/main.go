package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hubenschmidt/go-semcat"
	"github.com/hubenschmidt/go-semcat/catalog"
	"github.com/hubenschmidt/go-semcat/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "semcat",
		Short: "Semantic category registry",
		Long:  "semcat stores named categories with embeddings in a versioned document and finds them by meaning.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./semcat.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*semcat.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return semcat.Open(ctx, cfg)
}

func serveCmd() *cobra.Command {
	var addr string
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and category manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dev {
				cfg.Server.Dev = true
			}

			app, err := semcat.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           app.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("[server] listening on %s", cfg.Server.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Printf("[server] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&dev, "dev", false, "serve only the API; the manager runs separately")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			cats, err := app.Service.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(cats) == 0 {
				fmt.Println("No categories.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, c := range cats {
				fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name)
			}
			return w.Flush()
		},
	}
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			cat, err := app.Service.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created %s (%s)\n", cat.Name, cat.ID)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a category by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			deleted, err := app.Service.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Printf("No category with id %s\n", args[0])
				return nil
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	var topK int
	var threshold float64

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Find categories similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			var opts catalog.SearchOptions
			if cmd.Flags().Changed("top-k") {
				opts.TopK = &topK
			}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = &threshold
			}

			matches, err := app.Service.Search(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("No matches.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCORE\tNAME\tID")
			for _, m := range matches {
				fmt.Fprintf(w, "%.4f\t%s\t%s\n", m.Score, m.Name, m.ID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", catalog.DefaultTopK, "maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", catalog.DefaultThreshold, "minimum cosine similarity")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the category document",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Service.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d categories\n", n)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultFileName
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
