package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"scrumline/internal/app"
	"scrumline/internal/engine"
	"scrumline/internal/notify"
	"scrumline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"insufficient_budget"`
	Message string         `json:"message" example:"insufficient budget for the next sprint"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Scrumline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Scrumline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDevAuth(group, cfg.Auth)
	registerProjects(group, cfg.Engine)
	registerInstances(group, cfg.Engine)
	registerTeam(group, cfg.Engine)
	registerStories(group, cfg.Engine)
	registerSprints(group, cfg.Engine)
	registerChallenges(group, cfg.Engine)
	registerBadges(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrInstanceExists):
		return newAPIError(http.StatusConflict, "instance_exists", err.Error(), nil)
	case errors.Is(err, engine.ErrChallengeAlreadyApplied):
		return newAPIError(http.StatusConflict, "challenge_applied", err.Error(), nil)
	case errors.Is(err, engine.ErrInsufficientBudget):
		return newAPIError(http.StatusUnprocessableEntity, "insufficient_budget", err.Error(), nil)
	case errors.Is(err, engine.ErrEmptyTeam):
		return newAPIError(http.StatusUnprocessableEntity, "empty_team", err.Error(), nil)
	case errors.Is(err, engine.ErrNoAssignableStories):
		return newAPIError(http.StatusUnprocessableEntity, "no_assignable_stories", err.Error(), nil)
	case errors.Is(err, engine.ErrSprintLimitReached):
		return newAPIError(http.StatusUnprocessableEntity, "sprint_limit_reached", err.Error(), nil)
	case errors.Is(err, engine.ErrChallengeRestriction):
		return newAPIError(http.StatusUnprocessableEntity, "challenge_restriction", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "required") || strings.Contains(lowered, "empty") ||
		strings.Contains(lowered, "unknown"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// engineFor returns a copy of the base engine with the project's stored
// tuning and a message recorder attached.
func engineFor(ctx context.Context, base engine.Engine, projectID string) (engine.Engine, *notify.Recorder, error) {
	cfg, err := app.ResolveConfig(ctx, base.Repo, projectID)
	if err != nil {
		return base, nil, err
	}
	rec := &notify.Recorder{}
	e := base
	e.Config = cfg
	e.Notify = rec
	return e, rec, nil
}

// loadOwnedState loads instance state and rejects access to another
// user's play-through. Foreign instances are reported as missing.
func loadOwnedState(ctx context.Context, e engine.Engine, instanceID string) (*engine.State, huma.StatusError) {
	userID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	st, err := e.LoadState(ctx, instanceID, userID)
	if err != nil {
		return nil, handleError(err)
	}
	if st.Instance.UserID != userID {
		return nil, newAPIError(http.StatusNotFound, "not_found", "instance not found", nil)
	}
	return st, nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Scrumline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		userID := strings.TrimSpace(input.Body.UserID)
		if userID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, userID)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List catalog projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get catalog project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})
}

func registerInstances(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-project",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/instances",
		Summary:       "Start a play-through of a catalog project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body InstanceResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		pe, _, err := engineFor(ctx, e, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		inst, err := pe.StartProject(ctx, userID, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InstanceResponse `json:"body"`
		}{Body: instanceResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-instances",
		Method:      http.MethodGet,
		Path:        "/instances",
		Summary:     "List saved play-throughs",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []InstanceResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListInstances(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]InstanceResponse, 0, len(items))
		for _, in := range items {
			out = append(out, instanceResponse(in))
		}
		return &struct {
			Body []InstanceResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-instance",
		Method:      http.MethodGet,
		Path:        "/instances/{instance_id}",
		Summary:     "Get play-through state",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
	}) (*struct {
		Body struct {
			Instance InstanceResponse    `json:"instance"`
			Project  ProjectResponse     `json:"project"`
			Team     []DeveloperResponse `json:"team"`
			Stories  []StoryResponse     `json:"stories"`
			Sprints  []SprintResponse    `json:"sprints"`
			Finished bool                `json:"finished"`
		} `json:"body"`
	}, error) {
		st, herr := loadOwnedState(ctx, e, input.InstanceID)
		if herr != nil {
			return nil, herr
		}
		var out struct {
			Body struct {
				Instance InstanceResponse    `json:"instance"`
				Project  ProjectResponse     `json:"project"`
				Team     []DeveloperResponse `json:"team"`
				Stories  []StoryResponse     `json:"stories"`
				Sprints  []SprintResponse    `json:"sprints"`
				Finished bool                `json:"finished"`
			} `json:"body"`
		}
		out.Body.Instance = instanceResponse(st.Instance)
		out.Body.Project = projectResponse(st.Project)
		out.Body.Team = make([]DeveloperResponse, 0, len(st.Team))
		for _, d := range st.Team {
			out.Body.Team = append(out.Body.Team, developerResponse(*d))
		}
		out.Body.Stories = make([]StoryResponse, 0, len(st.Stories))
		for _, si := range st.Stories {
			out.Body.Stories = append(out.Body.Stories, storyResponse(*si))
		}
		out.Body.Sprints = make([]SprintResponse, 0, len(st.Sprints))
		for _, s := range st.Sprints {
			out.Body.Sprints = append(out.Body.Sprints, sprintResponse(s))
		}
		out.Body.Finished = st.Finished()
		return &out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-instance",
		Method:        http.MethodDelete,
		Path:          "/instances/{instance_id}",
		Summary:       "Abandon a play-through",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteSavedInstance(ctx, userID, input.InstanceID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTeam(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "hire-developer",
		Method:        http.MethodPost,
		Path:          "/instances/{instance_id}/developers",
		Summary:       "Hire a developer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
		Body       HireDeveloperRequest `json:"body"`
	}) (*struct {
		Body DeveloperResponse `json:"body"`
	}, error) {
		st, herr := loadOwnedState(ctx, e, input.InstanceID)
		if herr != nil {
			return nil, herr
		}
		pe, _, err := engineFor(ctx, e, st.Project.ID)
		if err != nil {
			return nil, handleError(err)
		}
		dev, err := pe.HireDeveloper(ctx, st, input.Body.Name, domainLevel(input.Body.Level))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeveloperResponse `json:"body"`
		}{Body: developerResponse(dev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-developer",
		Method:        http.MethodDelete,
		Path:          "/instances/{instance_id}/developers/{developer_id}",
		Summary:       "Remove a developer from the team",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InstanceID  string `path:"instance_id"`
		DeveloperID string `path:"developer_id"`
	}) (*struct{}, error) {
		st, herr := loadOwnedState(ctx, e, input.InstanceID)
		if herr != nil {
			return nil, herr
		}
		pe, _, err := engineFor(ctx, e, st.Project.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := pe.RemoveDeveloper(ctx, st, input.DeveloperID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerStories(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "assign-story",
		Method:      http.MethodPost,
		Path:        "/instances/{instance_id}/stories/{story_instance_id}/assign",
		Summary:     "Assign or unassign a story",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		InstanceID      string `path:"instance_id"`
		StoryInstanceID string `path:"story_instance_id"`
		Body            AssignStoryRequest `json:"body"`
	}) (*struct {
		Body StoryResponse `json:"body"`
	}, error) {
		st, herr := loadOwnedState(ctx, e, input.InstanceID)
		if herr != nil {
			return nil, herr
		}
		pe, _, err := engineFor(ctx, e, st.Project.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := pe.AssignStory(ctx, st, input.StoryInstanceID, input.Body.DeveloperID); err != nil {
			return nil, handleError(err)
		}
		for _, si := range st.Stories {
			if si.ID == input.StoryInstanceID {
				return &struct {
					Body StoryResponse `json:"body"`
				}{Body: storyResponse(*si)}, nil
			}
		}
		return nil, newAPIError(http.StatusNotFound, "not_found", "story not found", nil)
	})
}

func registerSprints(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-sprint",
		Method:        http.MethodPost,
		Path:          "/instances/{instance_id}/sprints",
		Summary:       "Play the next sprint",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
	}) (*struct {
		Body SprintRunResponse `json:"body"`
	}, error) {
		st, herr := loadOwnedState(ctx, e, input.InstanceID)
		if herr != nil {
			return nil, herr
		}
		pe, rec, err := engineFor(ctx, e, st.Project.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := pe.StartSprint(ctx, st)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SprintRunResponse `json:"body"`
		}{Body: SprintRunResponse{
			Sprint:   sprintResponse(res.Sprint),
			Revenue:  res.Revenue,
			Budget:   res.Budget,
			Finished: res.Finished,
			Route:    res.Route,
			Badges:   mapBadges(res.Badges),
			Messages: mapMessages(rec.Messages),
		}}, nil
	})
}

func registerChallenges(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "today-challenge",
		Method:      http.MethodGet,
		Path:        "/challenges/today",
		Summary:     "Show today's challenge",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ChallengeResponse `json:"body"`
	}, error) {
		return &struct {
			Body ChallengeResponse `json:"body"`
		}{Body: challengeResponse(e.TodayChallenge())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "apply-challenge",
		Method:      http.MethodPost,
		Path:        "/instances/{instance_id}/challenge",
		Summary:     "Apply today's challenge to a play-through",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
	}) (*struct {
		Body ChallengeRunResponse `json:"body"`
	}, error) {
		st, herr := loadOwnedState(ctx, e, input.InstanceID)
		if herr != nil {
			return nil, herr
		}
		pe, rec, err := engineFor(ctx, e, st.Project.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := pe.ApplyDailyChallenge(ctx, st)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChallengeRunResponse `json:"body"`
		}{Body: ChallengeRunResponse{
			Challenge: challengeResponse(res.Challenge),
			Badges:    mapBadges(res.Badges),
			Messages:  mapMessages(rec.Messages),
		}}, nil
	})
}

func registerBadges(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-badges",
		Method:      http.MethodGet,
		Path:        "/badges",
		Summary:     "List earned badges",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []BadgeResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListBadges(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []BadgeResponse `json:"body"`
		}{Body: mapBadges(items)}, nil
	})
}
