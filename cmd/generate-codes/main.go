package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/entrepeneur4lyf/chatgate/internal/config"
	"github.com/entrepeneur4lyf/chatgate/internal/verification"
)

// generate-codes seeds the remote store with a fresh batch of single-use
// verification codes and drops a local JSON backup alongside.
func main() {
	var (
		count      = flag.Int("count", 150, "Number of codes to generate")
		configPath = flag.String("config", "", "Path to configuration file")
		backup     = flag.String("backup", "verification-codes.json", "Local backup file ('' to skip)")
		dryRun     = flag.Bool("dry-run", false, "Generate and print codes without writing to the store")
		convert    = flag.Bool("convert", false, "Migrate the legacy flat code list instead of generating")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *convert {
		store := storeClient(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		migrated, err := store.ConvertLegacyCodes(ctx)
		if err != nil {
			log.Fatalf("Failed to migrate legacy codes: %v", err)
		}
		if migrated == 0 {
			fmt.Println("No legacy codes to migrate")
			return
		}
		fmt.Printf("✅ Migrated %d legacy verification codes\n", migrated)
		return
	}

	if *count <= 0 || *count > 900000 {
		log.Fatalf("Invalid count %d: must be between 1 and 900000", *count)
	}
	codes := verification.GenerateCodes(*count)

	if *backup != "" {
		data, err := json.MarshalIndent(codes, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal backup: %v", err)
		}
		if err := os.WriteFile(*backup, data, 0o600); err != nil {
			log.Fatalf("Failed to write backup: %v", err)
		}
		fmt.Printf("💾 Backup written to %s\n", *backup)
	}

	if *dryRun {
		for _, c := range codes {
			fmt.Println(c.Code)
		}
		return
	}

	store := storeClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.PutCodes(ctx, codes); err != nil {
		log.Fatalf("Failed to upload codes: %v", err)
	}

	fmt.Printf("✅ Uploaded %d verification codes\n", len(codes))
}

// storeClient builds the store client from config or exits.
func storeClient(cfg *config.Config) *verification.EdgeConfigClient {
	if cfg.Store.Connection == "" {
		log.Fatal("No store connection configured; set EDGE_CONFIG and VERCEL_API_TOKEN")
	}
	configID, err := verification.ParseConfigID(cfg.Store.Connection)
	if err != nil {
		log.Fatalf("Invalid store connection string: %v", err)
	}
	return verification.NewEdgeConfigClient(configID, cfg.Store.APIToken)
}
