// Command main runs the demo data seeder for modhub.
package main

import (
	"context"
	"flag"
	"log"

	_ "github.com/joho/godotenv/autoload"

	"modhub/internal/config"
	"modhub/internal/database"
	"modhub/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of regular users to create")
	numMods := flag.Int("mods", 5, "Number of mods to create")
	perMod := flag.Int("comments", 25, "Root comments per mod")
	pendingEvery := flag.Int("pending-every", 5, "Leave every Nth root comment pending")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	seedValue := flag.Int64("seed", 0, "Random seed (0 picks one)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d mods, %d comments per mod, clean=%v\n", *numUsers, *numMods, *perMod, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, *seedValue)

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(ctx, seed.Options{
		NumUsers:       *numUsers,
		NumMods:        *numMods,
		CommentsPerMod: *perMod,
		PendingEvery:   *pendingEvery,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Created %d users, %d mods, %d comments (%d pending), %d replies, %d votes\n",
		sum.Users, sum.Mods, sum.Comments, sum.Pending, sum.Replies, sum.Votes)
}
