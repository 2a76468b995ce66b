// Command ledgerctl is an operational CLI for the Value Ledger: mint funds,
// transfer between owners, inspect balances, and apply schema migrations
// against the relational backend.
//
// Usage:
//
//	ledgerctl migrate
//	ledgerctl create-asset <code> <unit> <decimals>
//	ledgerctl mint [-note <note>] <code> <owner> <amount>
//	ledgerctl transfer [-note <note>] <code> <from> <to> <amount>
//	ledgerctl balance <code> <owner>
//	ledgerctl transactions <owner> [limit]
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
	"github.com/R3E-Network/valueledger/internal/ledger/atomic"
	"github.com/R3E-Network/valueledger/internal/ledger/backend"
	"github.com/R3E-Network/valueledger/internal/ledger/backend/postgres"
	"github.com/R3E-Network/valueledger/pkg/config"
	"github.com/R3E-Network/valueledger/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config(cfg.Logging))

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.ConnectionString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if cmd == "migrate" {
		if err := postgres.Migrate(db); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
		return
	}

	var store backend.Backend = postgres.New(db)
	if cfg.Cache.Enabled {
		store = postgres.NewCachedStore(store, cfg.Cache.Addr, cfg.Cache.TTLDuration())
	}

	switch cmd {
	case "create-asset":
		cmdCreateAsset(ctx, store, args)
	case "mint":
		cmdMint(ctx, store, log, args)
	case "transfer":
		cmdTransfer(ctx, store, log, args)
	case "balance":
		cmdBalance(ctx, store, args)
	case "transactions", "txs":
		cmdTransactions(ctx, store, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ledgerctl - Value Ledger operational CLI

Usage:
  ledgerctl <command> [arguments]

Commands:
  migrate                                   Apply schema migrations
  create-asset <code> <unit> <decimals>     Register a new asset
  mint [-note ...] <code> <owner> <amount>  Mint funds into owner
  transfer <code> <from> <to> <amount>      Transfer funds between owners
  balance <code> <owner>                    Show available/reserved/total
  transactions <owner> [limit]              List recent transactions

Environment Variables:
  CONFIG_FILE   Path to a YAML config file (default configs/config.yaml)
  DATABASE_URL  Overrides the configured database DSN`)
}

func cmdCreateAsset(ctx context.Context, store backend.Backend, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: ledgerctl create-asset <code> <unit> <decimals>")
		os.Exit(1)
	}
	unit, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid unit: %v\n", err)
		os.Exit(1)
	}
	decimals, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid decimals: %v\n", err)
		os.Exit(1)
	}

	asset, err := store.CreateAsset(ctx, ledger.Asset{Code: args[0], Unit: unit, Decimals: int32(decimals)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Asset %s registered (id=%s, unit=%d, decimals=%d)\n", asset.Code, asset.ID, asset.Unit, asset.Decimals)
}

func cmdMint(ctx context.Context, store backend.Backend, log *logger.Logger, args []string) {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	note := fs.String("note", "", "Optional note for the mint")
	_ = fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: ledgerctl mint [-note <note>] <code> <owner> <amount>")
		os.Exit(1)
	}
	code, owner := remaining[0], remaining[1]
	amount, err := strconv.ParseInt(remaining[2], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid amount: %v\n", err)
		os.Exit(1)
	}

	var metadata map[string]string
	if *note != "" {
		metadata = map[string]string{"note": *note}
	}

	_, err = atomic.Run(ctx, store, func(tx *atomic.Context) error {
		return tx.Mint(code, owner, amount, metadata)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.WithFields(map[string]interface{}{"asset": code, "owner": owner, "amount": amount}).Info("minted")
	fmt.Printf("Minted %d %s into %s\n", amount, code, owner)
}

func cmdTransfer(ctx context.Context, store backend.Backend, log *logger.Logger, args []string) {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	note := fs.String("note", "", "Optional note for the transfer")
	_ = fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) < 4 {
		fmt.Fprintln(os.Stderr, "Usage: ledgerctl transfer [-note <note>] <code> <from> <to> <amount>")
		os.Exit(1)
	}
	code, from, to := remaining[0], remaining[1], remaining[2]
	amount, err := strconv.ParseInt(remaining[3], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid amount: %v\n", err)
		os.Exit(1)
	}

	var metadata map[string]string
	if *note != "" {
		metadata = map[string]string{"note": *note}
	}

	_, err = atomic.Run(ctx, store, func(tx *atomic.Context) error {
		money, err := tx.Money(code, from, amount)
		if err != nil {
			return err
		}
		slice, err := money.Slice(amount)
		if err != nil {
			return err
		}
		return slice.TransferTo(to, metadata)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.WithFields(map[string]interface{}{"asset": code, "from": from, "to": to, "amount": amount}).Info("transferred")
	fmt.Printf("Transferred %d %s from %s to %s\n", amount, code, from, to)
}

func cmdBalance(ctx context.Context, store backend.Backend, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: ledgerctl balance <code> <owner>")
		os.Exit(1)
	}
	bal, err := store.GetBalance(ctx, args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Owner:     %s\n", args[1])
	fmt.Printf("Available: %d\n", bal.Available)
	fmt.Printf("Reserved:  %d\n", bal.Reserved)
	fmt.Printf("Total:     %d\n", bal.Total())
}

func cmdTransactions(ctx context.Context, store backend.Backend, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ledgerctl transactions <owner> [limit]")
		os.Exit(1)
	}
	owner := args[0]
	limit := 20
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[1]); err == nil && l > 0 {
			limit = l
		}
	}

	txs, err := store.GetTransactionsForOwner(ctx, owner, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}
	if len(txs) == 0 {
		fmt.Println("No transactions found")
		return
	}

	fmt.Printf("%-36s %-12s %-12s %15s %15s %-20s\n", "ID", "Sender", "Receiver", "Sent", "Received", "Time")
	for _, tx := range txs {
		fmt.Printf("%-36s %-12s %-12s %15d %15d %-20s\n",
			tx.ID, tx.Sender, tx.Receiver, tx.SentAmount, tx.ReceivedAmount, tx.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}
