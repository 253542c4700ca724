// Command seed populates the database with demo venues, slots and users.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	days := flag.Int("days", 14, "Number of days of slots to generate")
	reviews := flag.Int("reviews", 5, "Number of reviews per venue")
	fixture := flag.String("venues", "", "Path to a YAML venue fixture (defaults to the built-in set)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	venues := seed.DefaultVenues()
	if *fixture != "" {
		data, err := os.ReadFile(*fixture)
		if err != nil {
			log.Fatalf("Failed to read venue fixture: %v", err)
		}
		if venues, err = seed.LoadVenues(data); err != nil {
			log.Fatalf("Invalid venue fixture: %v", err)
		}
	}

	s := seed.NewSeeder(db)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	summary, err := s.Run(context.Background(), venues, seed.Options{Users: *numUsers, Days: *days, Reviews: *reviews})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
	log.Printf("✨ Seeded %d users, %d venues, %d slots, %d reviews", summary.Users, summary.Venues, summary.Slots, summary.Comments)
}
