package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/supplychain"
	"github.com/meikuraledutech/supplychain/editor"
	"github.com/meikuraledutech/supplychain/memory"
	"github.com/meikuraledutech/supplychain/postgres"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Postgres when DATABASE_URL is set, memory otherwise. Both sit behind
	// the same Store interface.
	var store supplychain.Store = memory.New()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool, postgres.WithLogger(logger))
	}

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── A bicycle with two supply chains ──────────────────────────────
	//
	//   steel(4) -> frame(2) -> bicycle(1)
	//   rubber(5) -> tyre(3) -> bicycle(1)
	//   electricity(6) -> frame(2), electricity(6) -> tyre(3)
	const (
		bicycle supplychain.ProcessID = iota + 1
		frame
		tyre
		steel
		rubber
		electricity
	)
	system := &supplychain.ProductSystem{
		ID:               "bicycle",
		Name:             "bicycle production",
		ReferenceProcess: bicycle,
		Processes:        []supplychain.ProcessID{bicycle, frame, tyre, steel, rubber, electricity},
		Links: []supplychain.ProcessLink{
			{ProviderID: frame, ProcessID: bicycle, FlowID: 10},
			{ProviderID: tyre, ProcessID: bicycle, FlowID: 11},
			{ProviderID: steel, ProcessID: frame, FlowID: 12},
			{ProviderID: rubber, ProcessID: tyre, FlowID: 13},
			{ProviderID: electricity, ProcessID: frame, FlowID: 14},
			{ProviderID: electricity, ProcessID: tyre, FlowID: 14},
		},
	}
	if _, err := store.CreateSystem(ctx, system); err != nil {
		log.Fatalf("create system: %v", err)
	}
	fmt.Println("product system created")

	// ── Open it for editing ───────────────────────────────────────────
	ps, err := store.GetSystem(ctx, "bicycle")
	if err != nil {
		log.Fatalf("get system: %v", err)
	}
	session := editor.Open(ps, editor.WithView(), editor.WithLogger(logger))

	// ── Cut the supply chain of the tyre ──────────────────────────────
	// Rubber only feeds the tyre and goes with it. Electricity stays
	// because the frame still needs it; only its link to the tyre is cut.
	ok, err := session.CanRemoveSupplyChain(tyre)
	if err != nil {
		log.Fatalf("check: %v", err)
	}
	fmt.Printf("\nsupply chain of tyre removable: %v\n", ok)

	removal, err := session.RemoveSupplyChain(tyre)
	if err != nil {
		log.Fatalf("remove supply chain: %v", err)
	}
	fmt.Println("removed:")
	printJSON(removal)

	fmt.Println("\nlinks of electricity:")
	printJSON(session.Links(electricity))

	// ── Undo and redo ─────────────────────────────────────────────────
	if err := session.Undo(); err != nil {
		log.Fatalf("undo: %v", err)
	}
	fmt.Printf("\nafter undo: %d processes, %d links\n", len(session.System().Processes), len(session.System().Links))
	if err := session.Redo(); err != nil {
		log.Fatalf("redo: %v", err)
	}
	fmt.Printf("after redo: %d processes, %d links\n", len(session.System().Processes), len(session.System().Links))

	// ── Save and read back ────────────────────────────────────────────
	if err := session.Save(ctx, store); err != nil {
		log.Fatalf("save: %v", err)
	}
	saved, err := store.GetSystem(ctx, "bicycle")
	if err != nil {
		log.Fatalf("get system: %v", err)
	}
	fmt.Println("\nsaved system:")
	printJSON(saved)

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteSystem(ctx, "bicycle"); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("\nproduct system deleted")
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
