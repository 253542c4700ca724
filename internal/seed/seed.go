// Package seed provides helpers to create demo data for the booking
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"strings"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed venues.yml
var defaultVenues []byte

// VenueFixture describes a venue and the daily schedule its slots are
// generated from.
type VenueFixture struct {
	Name        string  `yaml:"name"`
	Address     string  `yaml:"address"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	SportType   string  `yaml:"sport_type"`
	Description string  `yaml:"description"`
	Opens       string  `yaml:"opens"`
	Closes      string  `yaml:"closes"`
	SlotMinutes int     `yaml:"slot_minutes"`
}

type fixtureFile struct {
	Venues []VenueFixture `yaml:"venues"`
}

// LoadVenues parses a YAML venue fixture.
func LoadVenues(data []byte) ([]VenueFixture, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse venue fixture: %w", err)
	}
	for i, v := range f.Venues {
		if strings.TrimSpace(v.Name) == "" {
			return nil, fmt.Errorf("venue %d: name is required", i)
		}
		if _, err := DailyWindows(v.Opens, v.Closes, v.SlotMinutes); err != nil {
			return nil, fmt.Errorf("venue %q: %w", v.Name, err)
		}
	}
	return f.Venues, nil
}

// DefaultVenues returns the built-in fixture.
func DefaultVenues() []VenueFixture {
	venues, err := LoadVenues(defaultVenues)
	if err != nil {
		panic(err)
	}
	return venues
}

// DailyWindows splits [opens, closes) into back-to-back slots of the given
// length. A trailing remainder shorter than one slot is dropped.
func DailyWindows(opens, closes string, minutes int) ([][2]string, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("slot_minutes must be positive")
	}
	start, err := time.Parse("15:04", opens)
	if err != nil {
		return nil, fmt.Errorf("invalid opens %q", opens)
	}
	end, err := time.Parse("15:04", closes)
	if err != nil {
		return nil, fmt.Errorf("invalid closes %q", closes)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("opens must be before closes")
	}

	step := time.Duration(minutes) * time.Minute
	var windows [][2]string
	for t := start; !t.Add(step).After(end); t = t.Add(step) {
		windows = append(windows, [2]string{t.Format("15:04"), t.Add(step).Format("15:04")})
	}
	return windows, nil
}

// Options controls a seeding run.
type Options struct {
	Users int
	Days  int
	// Reviews is the number of comments written per venue.
	Reviews int
	// From is the first slot date; zero means today in UTC.
	From time.Time
}

// Summary counts the rows a run created.
type Summary struct {
	Users    int
	Venues   int
	Slots    int
	Comments int
}

// Seeder writes demo data.
type Seeder struct {
	db    *gorm.DB
	repos *repository.Repositories
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db, repos: repository.New(db)}
}

// ClearAll removes all booking data, children first.
func (s *Seeder) ClearAll() error {
	log.Println("🧹 Cleaning database...")
	tables := []interface{}{
		&models.Sanction{},
		&models.Reservation{},
		&models.Slot{},
		&models.Comment{},
		&models.Venue{},
		&models.UserProfile{},
		&models.User{},
	}
	for _, t := range tables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
			return fmt.Errorf("clear %T: %w", t, err)
		}
	}
	return nil
}

// SeedUsers creates one administrator and n users with profiles.
func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]models.User, error) {
	users := make([]models.User, 0, n+1)
	admin := models.User{Name: "Administrator", Email: "admin@courtbook.dev", Role: models.RoleAdmin}
	if err := s.repos.Users.Create(ctx, &admin); err != nil {
		return nil, err
	}
	users = append(users, admin)

	for i := 0; i < n; i++ {
		user := models.User{
			Name:  gofakeit.Name(),
			Email: fmt.Sprintf("%d.%s", i, gofakeit.Email()),
			Role:  models.RoleUser,
		}
		if err := s.repos.Users.Create(ctx, &user); err != nil {
			return nil, err
		}
		profile := models.UserProfile{
			UserID: user.ID,
			Phone:  gofakeit.Phone(),
			City:   gofakeit.City(),
			Bio:    gofakeit.Sentence(8),
		}
		if err := s.repos.Users.CreateProfile(ctx, &profile); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// SeedComments writes perVenue reviews for each venue from random users.
func (s *Seeder) SeedComments(ctx context.Context, users []models.User, venueIDs []uint, perVenue int) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}
	created := 0
	for _, venueID := range venueIDs {
		for i := 0; i < perVenue; i++ {
			author := users[gofakeit.Number(0, len(users)-1)]
			comment := models.Comment{
				UserID:  author.ID,
				VenueID: venueID,
				Body:    gofakeit.Sentence(14),
				Rating:  gofakeit.Number(1, 5),
			}
			if err := s.repos.Comments.Create(ctx, &comment); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

// SeedVenues creates the fixture venues and their slots for days
// consecutive dates starting at from.
func (s *Seeder) SeedVenues(fixtures []VenueFixture, from time.Time, days int) ([]uint, int, error) {
	venueIDs := make([]uint, 0, len(fixtures))
	slots := 0
	for _, fx := range fixtures {
		description := fx.Description
		if description == "" {
			description = gofakeit.Sentence(12)
		}
		venue := models.Venue{
			Name:        fx.Name,
			Address:     fx.Address,
			Latitude:    fx.Latitude,
			Longitude:   fx.Longitude,
			SportType:   fx.SportType,
			Description: description,
		}
		if err := s.db.Create(&venue).Error; err != nil {
			return nil, 0, fmt.Errorf("create venue %q: %w", fx.Name, err)
		}
		venueIDs = append(venueIDs, venue.ID)

		windows, err := DailyWindows(fx.Opens, fx.Closes, fx.SlotMinutes)
		if err != nil {
			return nil, 0, fmt.Errorf("venue %q: %w", fx.Name, err)
		}
		batch := make([]models.Slot, 0, len(windows)*days)
		for d := 0; d < days; d++ {
			date := from.AddDate(0, 0, d).Format("2006-01-02")
			for _, w := range windows {
				batch = append(batch, models.Slot{
					VenueID:   venue.ID,
					Date:      date,
					StartTime: w[0],
					EndTime:   w[1],
					Status:    models.SlotAvailable,
				})
			}
		}
		if len(batch) > 0 {
			if err := s.db.CreateInBatches(&batch, 200).Error; err != nil {
				return nil, 0, fmt.Errorf("create slots for %q: %w", fx.Name, err)
			}
		}
		slots += len(batch)
	}
	return venueIDs, slots, nil
}

// Run seeds users, the given venues with their slots, and reviews.
func (s *Seeder) Run(ctx context.Context, fixtures []VenueFixture, opts Options) (*Summary, error) {
	from := opts.From
	if from.IsZero() {
		from = time.Now().UTC()
	}
	days := opts.Days
	if days <= 0 {
		days = 14
	}

	users, err := s.SeedUsers(ctx, opts.Users)
	if err != nil {
		return nil, err
	}
	venueIDs, slots, err := s.SeedVenues(fixtures, from, days)
	if err != nil {
		return nil, err
	}
	comments, err := s.SeedComments(ctx, users[1:], venueIDs, opts.Reviews)
	if err != nil {
		return nil, err
	}
	return &Summary{Users: len(users), Venues: len(venueIDs), Slots: slots, Comments: comments}, nil
}
