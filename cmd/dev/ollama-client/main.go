// Command ollama-client renders a prompt template from the database and runs
// it against the configured model, for trying template edits locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	dbfs "github.com/garnizeh/clinicmatch/db"
	"github.com/garnizeh/clinicmatch/internal/ai"
	"github.com/garnizeh/clinicmatch/internal/config"
	"github.com/garnizeh/clinicmatch/internal/db"
	"github.com/garnizeh/clinicmatch/internal/repository/sqlstore"
	"github.com/garnizeh/clinicmatch/pkg/ollama"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	kind := flag.String("kind", "bio", "What to generate: bio, questions or models")
	role := flag.String("role", "STAFF", "Role passed to the bio template")
	keywords := flag.String("keywords", "dental hygienist, 5 years, weekends", "Keywords for the bio template")
	position := flag.String("position", "dental assistant", "Position for the questions template")
	workplace := flag.String("workplace", "private clinic", "Workplace type for the questions template")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	ollama.SetLogger(logger)

	client, err := ollama.NewDefaultClient(cfg.Ollama)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if *kind == "models" {
		models, err := client.ListModels(ctx)
		if err != nil {
			log.Fatal(err)
		}
		for _, m := range models {
			fmt.Printf("%s\t%d\n", m.Name, m.Size)
		}
		return
	}

	database, err := db.New(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()
	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		log.Fatal(err)
	}

	store := sqlstore.New(database, logger)
	gen, err := ai.NewGenerator(client, store, cfg.AI, logger)
	if err != nil {
		log.Fatal(err)
	}

	switch *kind {
	case "bio":
		bio, err := gen.GenerateBio(ctx, ai.BioInput{Role: *role, Keywords: *keywords})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(bio)
	case "questions":
		qs, err := gen.GenerateQuestions(ctx, ai.QuestionsInput{Position: *position, WorkplaceType: *workplace})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(strings.Join(qs, "\n"))
	default:
		log.Fatalf("unknown kind %q", *kind)
	}
}
