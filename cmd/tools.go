package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellar/go/keypair"

	"github.com/dtroode/househelp-server/internal/config"
	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/repository/postgres"
	"github.com/dtroode/househelp-server/internal/service"
)

var (
	flagDescending bool
	flagLimit      int
)

var fundPlatformCmd = &cobra.Command{
	Use:   "fund-platform",
	Short: "Fund the platform account from the faucet and print its balances",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		address := a.platform.Address()
		if a.cfg.Stellar.Backend == config.BackendHorizon {
			if err := a.funder.Fund(cmd.Context(), address); err != nil {
				return fmt.Errorf("failed to fund platform account: %w", err)
			}
		}
		snapshot, err := a.client.LoadAccount(cmd.Context(), address)
		if err != nil {
			return fmt.Errorf("failed to load platform account: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Platform account: %s\n", address)
		for _, b := range snapshot.Balances {
			code := b.AssetCode
			if b.AssetType == ledger.AssetTypeNative {
				code = "XLM"
			}
			fmt.Fprintf(out, "  %s %s\n", b.Amount, code)
		}
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a fresh ledger keypair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kp, err := keypair.Random()
		if err != nil {
			return fmt.Errorf("failed to generate keypair: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\nSecret:     %s\n", kp.Address(), kp.Seed())
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <namespace>",
	Short: "Reconstruct a namespace from the platform account and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, ok := model.LookupNamespace(args[0])
		if !ok {
			names := make([]string, 0, len(model.Namespaces()))
			for _, n := range model.Namespaces() {
				names = append(names, n.Name)
			}
			return fmt.Errorf("unknown namespace %q, expected one of: %s", args[0], strings.Join(names, ", "))
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		order := service.Ascending
		if flagDescending {
			order = service.Descending
		}
		listing, err := a.index.ListNamespace(cmd.Context(), a.platform.Address(), ns, order)
		if err != nil {
			return err
		}
		if n := listing.SkippedCount(); n > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d pointers:\n%v\n", n, listing.Skipped)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(listing.Records)
	},
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List uploaded blobs whose ledger pointer was never written",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.NewConfig()
		if err != nil {
			return err
		}
		if cfg.Database.DSN == "" {
			return errors.New("DATABASE_DSN is required to read the anchor journal")
		}

		db, err := postgres.NewConection(cmd.Context(), cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to initialize anchor journal: %w", err)
		}
		defer db.Close()

		entries, err := postgres.NewAnchorJournalRepository(db).ListOrphaned(cmd.Context(), flagLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), e.Namespace, e.Account, e.CID, e.Error)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "no orphaned blobs")
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagDescending, "desc", false, "newest records first")
	orphansCmd.Flags().IntVar(&flagLimit, "limit", 100, "maximum number of entries")
}
