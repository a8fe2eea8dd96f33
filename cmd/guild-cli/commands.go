package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mondonet/guild-operators/internal/chainwait"
	"github.com/mondonet/guild-operators/internal/journal"
	"github.com/mondonet/guild-operators/internal/ledger"
	"github.com/mondonet/guild-operators/internal/wallet"
)

// ── tip ─────────────────────────────────────────────────────────────────

func (a *app) tipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tip",
		Short: "Show the chain tip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.ledgerClient()
			if err != nil {
				return err
			}
			tip, err := client.QueryTip(cmd.Context())
			if err != nil {
				return fmt.Errorf("query tip: %w", err)
			}
			fmt.Printf("Block: %d\n", tip.Block)
			fmt.Printf("Slot:  %d\n", tip.Slot)
			if tip.Epoch > 0 {
				fmt.Printf("Epoch: %d\n", tip.Epoch)
			}
			if tip.Hash != "" {
				fmt.Printf("Hash:  %s\n", tip.Hash)
			}
			return nil
		},
	}
}

// ── wait-block ──────────────────────────────────────────────────────────

func (a *app) waitBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wait-block",
		Short: "Wait for the next block (Ctrl+C cancels)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.ledgerClient()
			if err != nil {
				return err
			}
			return a.waitForBlock(cmd, a.waiter(client))
		},
	}
}

func (a *app) waitForBlock(cmd *cobra.Command, w chainwait.Waiter) error {
	fmt.Printf("Waiting for a new block (up to %d slots)...\n", a.cfg.WaitSlots)
	tip, err := w.WaitForNewBlock(cmd.Context())
	if errors.Is(err, chainwait.ErrTimeout) {
		return fmt.Errorf("no new block after %d slots; is the node synced?", a.cfg.WaitSlots)
	}
	if err != nil {
		return err
	}
	fmt.Printf("New block: %d (slot %d)\n", tip.Block, tip.Slot)
	return nil
}

// ── balance ─────────────────────────────────────────────────────────────

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the UTxOs and total balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.ledgerClient()
			if err != nil {
				return err
			}
			snap, err := wallet.NewAggregator(client).GetBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSnapshot(snap, a.cfg.DisplayMaxUTxOs)
			return nil
		},
	}
}

func printSnapshot(snap *wallet.Snapshot, limit int) {
	fmt.Printf("Address: %s\n", snap.Address)
	if snap.Empty() {
		fmt.Println("No UTxOs found")
		fmt.Println("Balance: 0 ADA")
		return
	}

	top := snap.Top(limit)
	fmt.Printf("%-68s %24s\n", "UTxO", "ADA")
	for _, u := range top {
		fmt.Printf("%-68s %24s\n", u.Ref(), wallet.FormatADA(u.Value))
	}
	if hidden := snap.Count() - len(top); hidden > 0 {
		fmt.Printf("... %d more UTxOs not shown\n", hidden)
	}
	fmt.Printf("UTxOs:   %d\n", snap.Count())
	fmt.Printf("Balance: %s ADA (%s lovelace)\n", wallet.FormatADA(snap.Total), wallet.FormatLovelace(snap.Total))
}

// ── send ────────────────────────────────────────────────────────────────

func (a *app) sendCmd() *cobra.Command {
	var (
		from, to, amountStr, key string
		recipientPays, wait      bool
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send ADA from one address to another",
		Long: "Send ADA. The fee is added on top of the amount unless --recipient-pays is set.\n" +
			"An amount of \"all\" spends the entire balance; the fee is then deducted from it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := wallet.ParseAmount(amountStr)
			if err != nil {
				return err
			}
			policy := wallet.SenderPays
			if recipientPays {
				policy = wallet.RecipientPays
			}

			asm, closeJournal, err := a.assembler()
			if err != nil {
				return err
			}
			defer closeJournal()

			r, err := asm.SendPayment(cmd.Context(), wallet.PaymentRequest{
				Source:      from,
				Destination: to,
				Amount:      amount,
				SigningKey:  key,
				Policy:      policy,
			})
			if err != nil {
				return err
			}
			printReceipt(r)
			if wait {
				client, err := a.ledgerClient()
				if err != nil {
					return err
				}
				return a.waitForBlock(cmd, a.waiter(client))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&from, "from", "", "source address")
	f.StringVar(&to, "to", "", "destination address")
	f.StringVar(&amountStr, "amount", "", `amount in ADA, or "all"`)
	f.StringVar(&key, "key", "", "payment signing key (.skey or sealed .skey.enc)")
	f.BoolVar(&recipientPays, "recipient-pays", false, "deduct the fee from the amount")
	f.BoolVar(&wait, "wait", false, "wait for the next block after submitting")
	for _, name := range []string{"from", "to", "amount", "key"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// ── stake ───────────────────────────────────────────────────────────────

func (a *app) stakeCmd() *cobra.Command {
	stake := &cobra.Command{
		Use:   "stake",
		Short: "Stake key operations",
	}

	var address, paymentKey, stakeKey, cert string
	register := &cobra.Command{
		Use:   "register",
		Short: "Register a stake key, paying the key deposit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asm, closeJournal, err := a.assembler()
			if err != nil {
				return err
			}
			defer closeJournal()

			r, err := asm.RegisterStaking(cmd.Context(), wallet.StakeRegistration{
				PaymentAddress: address,
				PaymentKey:     paymentKey,
				StakeKey:       stakeKey,
				Certificate:    cert,
			})
			if err != nil {
				return err
			}
			printReceipt(r)
			return nil
		},
	}
	f := register.Flags()
	f.StringVar(&address, "address", "", "payment address funding fee and deposit")
	f.StringVar(&paymentKey, "payment-key", "", "payment signing key")
	f.StringVar(&stakeKey, "stake-key", "", "stake signing key")
	f.StringVar(&cert, "cert", "", "stake registration certificate")
	for _, name := range []string{"address", "payment-key", "stake-key", "cert"} {
		_ = register.MarkFlagRequired(name)
	}

	stake.AddCommand(register)
	return stake
}

func printReceipt(r *wallet.Receipt) {
	d := r.Draft
	fmt.Printf("Submitted: %s\n", r.Kind)
	if r.TxID != "" {
		fmt.Printf("TxID:      %s\n", r.TxID)
	}
	fmt.Printf("Inputs:    %d (%s ADA)\n", len(d.Inputs), wallet.FormatADA(d.InputTotal()))
	for _, out := range d.Outputs {
		fmt.Printf("Output:    %s ADA -> %s\n", wallet.FormatADA(out.Value), out.Address)
	}
	fmt.Printf("Fee:       %s ADA (%s)\n", wallet.FormatADA(d.Fee), r.Policy)
	if d.Deposit > 0 {
		fmt.Printf("Deposit:   %s ADA\n", wallet.FormatADA(d.Deposit))
	}
	fmt.Printf("TTL:       slot %d\n", d.TTL)
}

// ── key ─────────────────────────────────────────────────────────────────

func (a *app) keyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "key",
		Short: "Signing key operations",
	}
	key.AddCommand(&cobra.Command{
		Use:   "seal <skey>",
		Short: "Encrypt a signing key into <skey>.enc and scrub the plaintext",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			password, err := readPassword("New password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			confirm, err := readPassword("Confirm password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if !bytes.Equal(password, confirm) {
				return errors.New("passwords do not match")
			}
			if len(password) == 0 {
				return errors.New("password must not be empty")
			}

			ks, err := a.keystore()
			if err != nil {
				return err
			}
			sealed, err := ks.Seal(args[0], password)
			if err != nil {
				return err
			}
			fmt.Printf("Sealed key: %s\n", sealed)
			return nil
		},
	})
	return key
}

// ── history ─────────────────────────────────────────────────────────────

func (a *app) historyCmd() *cobra.Command {
	var (
		limit int
		txid  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			j, err := journal.Open(a.cfg.JournalDir())
			if err != nil {
				return err
			}
			defer j.Close()

			if txid != "" {
				e, err := j.Find(txid)
				if err != nil {
					return fmt.Errorf("%s: %w", txid, err)
				}
				printEntry(*e)
				return nil
			}
			entries, err := j.Latest(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No submissions recorded")
				return nil
			}
			for _, e := range entries {
				printEntry(e)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show (0 = all)")
	cmd.Flags().StringVar(&txid, "txid", "", "show a single recorded transaction")
	return cmd
}

func printEntry(e journal.Entry) {
	fmt.Printf("%s  %-18s %s\n", e.SubmittedAt.Local().Format("2006-01-02 15:04:05"), e.Kind, e.TxID)
	switch e.Kind {
	case string(wallet.KindStakeRegistration):
		fmt.Printf("    %s  deposit %s ADA  fee %s ADA\n", e.Source, wallet.FormatADA(e.Deposit), wallet.FormatADA(e.Fee))
	default:
		fmt.Printf("    %s -> %s  %s ADA  fee %s ADA (%s)\n",
			e.Source, e.Destination, wallet.FormatADA(e.Amount), wallet.FormatADA(e.Fee), e.Policy)
	}
	fmt.Printf("    inputs %d  ttl %d\n", len(e.Inputs), e.TTL)
}

func (a *app) waiter(client ledger.TipQuerier) *chainwait.PollWaiter {
	return chainwait.NewPollWaiter(client, chainwait.Config{
		Interval: a.cfg.SlotLength,
		MaxPolls: a.cfg.WaitSlots,
	})
}
