// Command weblog-server serves the browsable run history over HTTP.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/sidereal-data/reduction.report/internal/ledger"
	"github.com/sidereal-data/reduction.report/internal/weblog"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	ledgerPath = flag.String("ledger", "reduction.db", "Path to the run-history database")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	db, err := ledger.Open(*ledgerPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate ledger: %v", err)
	}

	srv := weblog.NewServer(db)
	log.Printf("weblog listening on %s", *listen)
	if err := http.ListenAndServe(*listen, srv.Routes()); err != nil {
		log.Fatalf("weblog server failed: %v", err)
	}
}
