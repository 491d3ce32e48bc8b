package scrumlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Scrumline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents a catalog project.
type Project struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Budget      int            `json:"budget"`
	NumSprints  int            `json:"num_sprints"`
	DevCosts    map[string]int `json:"dev_costs"`
}

// Instance represents a saved play-through.
type Instance struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Budget    int    `json:"budget"`
	CreatedAt string `json:"created_at"`
}

// Developer represents a roster member.
type Developer struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Level             string `json:"level"`
	Cost              int    `json:"cost"`
	Sick              bool   `json:"sick"`
	SickUntilSprint   int    `json:"sick_until_sprint,omitempty"`
	PermanentlyAbsent bool   `json:"permanently_absent"`
}

// Story represents a story copy inside a play-through.
type Story struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Points      int     `json:"points"`
	Kind        string  `json:"kind"`
	Progress    int     `json:"progress"`
	Complete    bool    `json:"complete"`
	DeveloperID *string `json:"developer_id,omitempty"`
}

// Sprint represents one played sprint.
type Sprint struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Duration  int    `json:"duration"`
	Progress  int    `json:"progress"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

// Message is a notification produced by an operation.
type Message struct {
	Text     string `json:"text"`
	Severity string `json:"severity"`
}

// SprintRun is the outcome of playing one sprint.
type SprintRun struct {
	Sprint   Sprint    `json:"sprint"`
	Revenue  int       `json:"revenue"`
	Budget   int       `json:"budget"`
	Finished bool      `json:"finished"`
	Route    string    `json:"route"`
	Badges   []Badge   `json:"badges,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// Badge represents an earned achievement.
type Badge struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	AwardedAt   string `json:"awarded_at"`
}

// Challenge represents a daily challenge.
type Challenge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ChallengeRun is the outcome of applying a daily challenge.
type ChallengeRun struct {
	Challenge Challenge `json:"challenge"`
	Badges    []Badge   `json:"badges,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login mints a dev JWT and stores it on the client.
func (c *Client) Login(ctx context.Context, userID string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", map[string]any{"user_id": userID}, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// ListProjects returns the catalog.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "v0/projects", nil, &resp)
	return resp, err
}

// StartProject starts a play-through of a catalog project.
func (c *Client) StartProject(ctx context.Context, projectID string) (Instance, error) {
	var resp Instance
	err := c.do(ctx, http.MethodPost, "v0/projects/"+url.PathEscape(projectID)+"/instances", nil, &resp)
	return resp, err
}

// ListInstances returns the caller's saved play-throughs.
func (c *Client) ListInstances(ctx context.Context) ([]Instance, error) {
	var resp []Instance
	err := c.do(ctx, http.MethodGet, "v0/instances", nil, &resp)
	return resp, err
}

// HireDeveloper adds a developer to a play-through's roster.
func (c *Client) HireDeveloper(ctx context.Context, instanceID, name, level string) (Developer, error) {
	body := map[string]any{"name": name, "level": level}
	var resp Developer
	err := c.do(ctx, http.MethodPost, c.instancePath(instanceID, "developers"), body, &resp)
	return resp, err
}

// AssignStory assigns a story to a developer; pass nil to unassign.
func (c *Client) AssignStory(ctx context.Context, instanceID, storyInstanceID string, developerID *string) (Story, error) {
	body := map[string]any{"developer_id": developerID}
	var resp Story
	err := c.do(ctx, http.MethodPost, c.instancePath(instanceID, "stories/"+url.PathEscape(storyInstanceID)+"/assign"), body, &resp)
	return resp, err
}

// StartSprint plays the next sprint.
func (c *Client) StartSprint(ctx context.Context, instanceID string) (SprintRun, error) {
	var resp SprintRun
	err := c.do(ctx, http.MethodPost, c.instancePath(instanceID, "sprints"), nil, &resp)
	return resp, err
}

// TodayChallenge returns today's daily challenge.
func (c *Client) TodayChallenge(ctx context.Context) (Challenge, error) {
	var resp Challenge
	err := c.do(ctx, http.MethodGet, "v0/challenges/today", nil, &resp)
	return resp, err
}

// ApplyChallenge applies today's challenge to a play-through.
func (c *Client) ApplyChallenge(ctx context.Context, instanceID string) (ChallengeRun, error) {
	var resp ChallengeRun
	err := c.do(ctx, http.MethodPost, c.instancePath(instanceID, "challenge"), nil, &resp)
	return resp, err
}

// Badges returns the caller's earned achievements.
func (c *Client) Badges(ctx context.Context) ([]Badge, error) {
	var resp []Badge
	err := c.do(ctx, http.MethodGet, "v0/badges", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) instancePath(instanceID, p string) string {
	return fmt.Sprintf("v0/instances/%s/%s", url.PathEscape(instanceID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
