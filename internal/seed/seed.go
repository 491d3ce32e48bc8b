// Package seed installs the built-in project catalog on first run.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scrumline/internal/config"
	"scrumline/internal/domain"
	"scrumline/internal/repo"
)

type storySeed struct {
	Title       string
	Description string
	Points      int
	RandomEvent bool
}

type projectSeed struct {
	ID          string
	Title       string
	Description string
	Budget      int
	NumSprints  int
	Stories     []storySeed
}

var catalog = []projectSeed{
	{
		ID:          "bakery-landing",
		Title:       "Create a Landing Page for a Local Bakery",
		Description: "A family bakery wants a simple landing page with their menu, opening hours and a contact form.",
		Budget:      5000,
		NumSprints:  3,
		Stories: []storySeed{
			{Title: "Design the page layout", Description: "Wireframe the hero section, menu and footer.", Points: 3},
			{Title: "Build the menu section", Description: "Render the product list with prices and photos.", Points: 5},
			{Title: "Add a contact form", Description: "Form with validation that emails the bakery.", Points: 5},
			{Title: "Publish opening hours", Description: "Static section with weekly opening hours.", Points: 2},
			{Title: "Add photo gallery", Description: "The owner sends fresh photos every week.", Points: 3, RandomEvent: true},
			{Title: "Translate the page", Description: "A second language version for tourist season.", Points: 4, RandomEvent: true},
		},
	},
	{
		ID:          "task-webapp",
		Title:       "Develop a Task Management Web App",
		Description: "A startup needs a simple web app for tracking daily tasks across small teams.",
		Budget:      15000,
		NumSprints:  5,
		Stories: []storySeed{
			{Title: "User registration and login", Description: "Email sign-up with password reset.", Points: 8},
			{Title: "Create and edit tasks", Description: "Tasks with title, due date and priority.", Points: 5},
			{Title: "Task board view", Description: "Drag tasks between todo, doing and done.", Points: 8},
			{Title: "Team invitations", Description: "Invite colleagues by email to a shared board.", Points: 5},
			{Title: "Due date reminders", Description: "Daily email digest of tasks due soon.", Points: 3},
			{Title: "Mobile layout", Description: "Sales wants a demo on phones next month.", Points: 6, RandomEvent: true},
			{Title: "Export to CSV", Description: "A pilot customer asked for weekly exports.", Points: 3, RandomEvent: true},
		},
	},
	{
		ID:          "crafts-store",
		Title:       "Build an E-commerce Store for Handmade Crafts",
		Description: "An artisan shop wants an online store to sell handmade goods with card payments.",
		Budget:      20000,
		NumSprints:  6,
		Stories: []storySeed{
			{Title: "Product catalog pages", Description: "Browse products by category with search.", Points: 8},
			{Title: "Shopping cart", Description: "Add, remove and update quantities.", Points: 5},
			{Title: "Checkout with card payments", Description: "Integrate a payment provider with receipts.", Points: 13},
			{Title: "Order management", Description: "The shop owner lists and fulfils orders.", Points: 8},
			{Title: "Customer accounts", Description: "Order history and saved addresses.", Points: 5},
			{Title: "Inventory tracking", Description: "Out-of-stock products leave the storefront.", Points: 5},
			{Title: "Gift wrapping option", Description: "The owner wants a seasonal gift-wrap upsell.", Points: 3, RandomEvent: true},
			{Title: "Discount codes", Description: "Marketing planned a launch promotion.", Points: 5, RandomEvent: true},
		},
	},
}

// Seed installs the catalog projects, their stories and per-project
// default configs. It is a no-op when the catalog is already present.
func Seed(ctx context.Context, r repo.Repo) (int, error) {
	n, err := r.CountProjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, ps := range catalog {
		cfg := config.Default(ps.ID)
		p := domain.Project{
			ID:          ps.ID,
			Title:       ps.Title,
			Description: ps.Description,
			Budget:      ps.Budget,
			NumSprints:  ps.NumSprints,
			DevCosts:    cfg.Costs,
			CreatedAt:   now,
		}
		if err := r.InsertProject(ctx, p); err != nil {
			return 0, fmt.Errorf("seed project %s: %w", ps.ID, err)
		}
		if err := r.UpsertProjectConfig(ctx, ps.ID, cfg); err != nil {
			return 0, fmt.Errorf("seed config %s: %w", ps.ID, err)
		}
		for _, ss := range ps.Stories {
			s := domain.Story{
				ID:          uuid.New().String(),
				ProjectID:   ps.ID,
				Title:       ss.Title,
				Description: ss.Description,
				Points:      ss.Points,
				Kind:        "feature",
				RandomEvent: ss.RandomEvent,
			}
			if err := r.InsertStory(ctx, s); err != nil {
				return 0, fmt.Errorf("seed story %q: %w", ss.Title, err)
			}
		}
	}
	return len(catalog), nil
}
