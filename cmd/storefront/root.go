package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"storefront/internal/appstate"
	"storefront/internal/localstore"
	"storefront/internal/reqqueue"
	"storefront/internal/storefront"
)

const (
	defaultAPIURL    = "http://localhost:5000"
	defaultStateFile = ".storefront.db"
)

// app holds what every subcommand needs. It is opened in PersistentPreRunE.
type app struct {
	apiURL    string
	statePath string
	verbose   bool

	storage *localstore.SQLite
	queue   *reqqueue.Queue
	client  *storefront.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Shop from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.apiURL, "api-url", envOr("STOREFRONT_API_URL", defaultAPIURL), "API base URL (env STOREFRONT_API_URL)")
	root.PersistentFlags().StringVar(&a.statePath, "state", envOr("STOREFRONT_STATE", ""), "local state file (env STOREFRONT_STATE, default under the user config dir)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProfileCmd(a),
		newProductsCmd(a),
		newCartCmd(a),
		newShippingCmd(a),
		newPaymentCmd(a),
		newCheckoutCmd(a),
		newOrdersCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if a.statePath == "" {
		a.statePath = defaultStatePath()
	}
	storage, err := localstore.OpenSQLite(a.statePath)
	if err != nil {
		return err
	}
	a.storage = storage

	store := appstate.New(cmd.Context(), storage, logger)
	a.queue = reqqueue.New(nil, reqqueue.WithBaseURL(a.apiURL), reqqueue.WithLogger(logger))
	a.client = storefront.New(store, a.queue, logger)
	return nil
}

func (a *app) close() error {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.storage != nil {
		return a.storage.Close()
	}
	return nil
}

func (a *app) requireSession() error {
	if a.client.State().Session == nil {
		return errors.New("not signed in; run `storefront login` first")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return defaultStateFile
	}
	dir = filepath.Join(dir, "storefront")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return defaultStateFile
	}
	return filepath.Join(dir, "state.db")
}
