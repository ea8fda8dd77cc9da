package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/models"
	"github.com/jimdaga/briefdesk/internal/store"
	"gorm.io/gorm"
)

// DevUserEmail is the account created by SeedDevData.
const DevUserEmail = "dev@briefdesk.local"

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(ctx context.Context, db *gorm.DB) error {
	var existingUser models.User
	result := db.WithContext(ctx).Where("email = ?", DevUserEmail).First(&existingUser)
	if result.Error == nil {
		log.Println("Seed data already exists, skipping")
		return nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	user := models.User{
		Email: DevUserEmail,
		Name:  "Dev User",
		Role:  "user",
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return err
	}

	identity := models.AuthIdentity{
		UserID:         user.ID,
		Provider:       "google",
		ProviderUserID: "dev-google-id-12345",
		AccessToken:    "dev-access-token-placeholder",
		RefreshToken:   "dev-refresh-token-placeholder",
	}
	if err := db.WithContext(ctx).Omit("User").Create(&identity).Error; err != nil {
		return err
	}

	// One more than a page, so the list shows "load more".
	samples := sampleDocuments()
	st := store.New(db)
	for _, doc := range samples {
		title := briefing.DeriveTitle(doc, "", time.Now())
		if _, err := st.Create(ctx, user.ID, title, doc); err != nil {
			return fmt.Errorf("failed to seed briefing: %w", err)
		}
	}

	log.Printf("Seeded dev data: 1 user, 1 auth identity, %d briefings", len(samples))
	return nil
}

func sampleDocuments() []briefing.Document {
	projects := []struct {
		objective, audience string
		budget              float64
	}{
		{"Redesign the coffee shop logo", "Young professionals", 1200},
		{"Launch landing page for the spring collection", "Returning customers", 3500},
		{"Produce a 30 second product video", "Instagram followers", 5000},
		{"Rewrite onboarding emails", "Trial users", 800},
		{"Design trade show booth graphics", "Industry buyers", 2200},
		{"Refresh the brand colour palette", "Existing clients", 950},
		{"Photograph the new menu", "Local diners", 600},
	}

	docs := make([]briefing.Document, 0, len(projects))
	for _, p := range projects {
		docs = append(docs, briefing.Document{
			Objective:      p.objective,
			TargetAudience: p.audience,
			References:     []string{"https://example.com/moodboard"},
			Deadlines: briefing.Deadlines{
				Start:              "2025-02-01",
				Delivery:           "2025-03-15",
				IntermediateStages: "Concept review after two weeks",
			},
			Budget: briefing.Budget{Total: p.budget, PerStage: p.budget / 2},
			Notes:  []string{"Seeded for local development"},
		})
	}
	return docs
}
