package server

import (
	"scrumline/internal/domain"
	"scrumline/internal/engine"
	"scrumline/internal/notify"
)

// Request payloads

type DevLoginRequest struct {
	UserID string `json:"user_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type HireDeveloperRequest struct {
	Name  string `json:"name"`
	Level string `json:"level" enum:"junior,mid,senior"`
}

type AssignStoryRequest struct {
	DeveloperID *string `json:"developer_id"`
}

// Responses

type ProjectResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Budget      int            `json:"budget"`
	NumSprints  int            `json:"num_sprints"`
	DevCosts    map[string]int `json:"dev_costs"`
}

type InstanceResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Budget    int    `json:"budget"`
	CreatedAt string `json:"created_at"`
}

type DeveloperResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Level             string `json:"level"`
	Cost              int    `json:"cost"`
	Sick              bool   `json:"sick"`
	SickUntilSprint   int    `json:"sick_until_sprint,omitempty"`
	PermanentlyAbsent bool   `json:"permanently_absent"`
	MoraleBoost       int    `json:"morale_boost,omitempty"`
}

type StoryResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Points      int     `json:"points"`
	Kind        string  `json:"kind"`
	Progress    int     `json:"progress"`
	Complete    bool    `json:"complete"`
	DeveloperID *string `json:"developer_id,omitempty"`
}

type SprintResponse struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Duration  int    `json:"duration"`
	Completed bool   `json:"completed"`
	Progress  int    `json:"progress"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

type MessageResponse struct {
	Text     string `json:"text"`
	Severity string `json:"severity"`
}

type SprintRunResponse struct {
	Sprint   SprintResponse    `json:"sprint"`
	Revenue  int               `json:"revenue"`
	Budget   int               `json:"budget"`
	Finished bool              `json:"finished"`
	Route    string            `json:"route"`
	Badges   []BadgeResponse   `json:"badges,omitempty"`
	Messages []MessageResponse `json:"messages,omitempty"`
}

type BadgeResponse struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	AwardedAt   string `json:"awarded_at"`
}

type ChallengeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ChallengeRunResponse struct {
	Challenge ChallengeResponse `json:"challenge"`
	Badges    []BadgeResponse   `json:"badges,omitempty"`
	Messages  []MessageResponse `json:"messages,omitempty"`
}

func domainLevel(s string) domain.ExperienceLevel {
	return domain.ExperienceLevel(s)
}

// Mappers

func projectResponse(p domain.Project) ProjectResponse {
	costs := make(map[string]int, len(p.DevCosts))
	for level, cost := range p.DevCosts {
		costs[string(level)] = cost
	}
	return ProjectResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Budget:      p.Budget,
		NumSprints:  p.NumSprints,
		DevCosts:    costs,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

func instanceResponse(in domain.Instance) InstanceResponse {
	return InstanceResponse{ID: in.ID, ProjectID: in.ProjectID, Budget: in.Budget, CreatedAt: in.CreatedAt}
}

func developerResponse(d domain.Developer) DeveloperResponse {
	return DeveloperResponse{
		ID:                d.ID,
		Name:              d.Name,
		Level:             string(d.Level),
		Cost:              d.Cost,
		Sick:              d.Sick,
		SickUntilSprint:   d.SickUntilSprint,
		PermanentlyAbsent: d.PermanentlyAbsent,
		MoraleBoost:       d.MoraleBoost,
	}
}

func storyResponse(si domain.StoryInstance) StoryResponse {
	return StoryResponse{
		ID:          si.ID,
		Title:       si.Story.Title,
		Description: si.Story.Description,
		Points:      si.Story.Points,
		Kind:        si.Story.Kind,
		Progress:    si.Progress,
		Complete:    si.Complete,
		DeveloperID: si.DeveloperID,
	}
}

func sprintResponse(s domain.Sprint) SprintResponse {
	return SprintResponse{
		ID:        s.ID,
		Number:    s.Number,
		Duration:  s.Duration,
		Completed: s.Completed,
		Progress:  s.Progress,
		Summary:   s.Summary,
		CreatedAt: s.CreatedAt,
	}
}

func badgeResponse(b domain.Badge) BadgeResponse {
	return BadgeResponse{Type: string(b.Type), Description: b.Description, Icon: b.Icon, AwardedAt: b.AwardedAt}
}

func mapBadges(items []domain.Badge) []BadgeResponse {
	out := make([]BadgeResponse, 0, len(items))
	for _, b := range items {
		out = append(out, badgeResponse(b))
	}
	return out
}

func challengeResponse(m engine.Modifier) ChallengeResponse {
	return ChallengeResponse{ID: m.ID, Name: m.Name, Description: m.Description}
}

func mapMessages(msgs []notify.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{Text: m.Text, Severity: string(m.Severity)})
	}
	return out
}
