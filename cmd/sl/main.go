package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scrumline/internal/app"
	"scrumline/internal/db"
	"scrumline/internal/domain"
	"scrumline/internal/engine"
	"scrumline/internal/notify"
	"scrumline/internal/repo"
	"scrumline/internal/seed"
	"scrumline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Scrumline CLI",
	Long: `Scrumline simulates running a software project with Scrum.
How a play-through works:
- Workspace: your .scrumline directory holding the database and catalog.
- Project: pick one from the catalog; it comes with a budget, a sprint
  limit and a backlog of user stories.
- Team: hire junior, mid or senior developers; each level rolls more
  progress per sprint but costs more salary.
- Stories: assign backlog stories to developers; spreading one developer
  across many stories slows them down.
- Sprints: each sprint pays salaries, advances assigned stories, earns
  revenue for completed stories and ends with a random event.
- Daily challenge: one handicap per day, the same for every player, worth
  badges if you take it on.
- Badges: durable achievements across all your play-throughs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SCRUMLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "local-user", "player identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(storyCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(challengeCmd())
	rootCmd.AddCommand(badgesCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the built-in project catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				n, err := seed.Seed(ctx, r)
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Println("catalog already installed")
					return nil
				}
				fmt.Printf("installed %d catalog projects\n", n)
				return nil
			})
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Browse the catalog and manage play-throughs"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectStartCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				saved := map[string]bool{}
				if instances, err := r.ListInstances(ctx, viper.GetString("user")); err == nil {
					for _, in := range instances {
						saved[in.ProjectID] = true
					}
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Budget", "Sprints", "Started"})
				for _, p := range items {
					started := ""
					if saved[p.ID] {
						started = "yes"
					}
					tw.AppendRow(table.Row{p.ID, p.Title, p.Budget, p.NumSprints, started})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <project-id>",
		Short: "Start a play-through of a catalog project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProjectEngine(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine) error {
				inst, err := e.StartProject(ctx, viper.GetString("user"), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(inst)
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show the state of a play-through",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"instance": st.Instance,
						"project":  st.Project,
						"team":     st.Team,
						"stories":  st.Stories,
						"sprints":  st.Sprints,
						"finished": st.Finished(),
					})
				}
				fmt.Printf("%s\n", st.Project.Title)
				fmt.Printf("  budget:   %d\n", st.Instance.Budget)
				fmt.Printf("  sprints:  %d of %d played\n", st.CompletedSprints(), st.Project.NumSprints)
				fmt.Printf("  team:     %d developers (%d salary per sprint)\n", len(st.Team), st.TotalSalary())
				fmt.Printf("  progress: %d%%\n", st.OverallProgress())
				if st.Finished() {
					fmt.Println("  finished!")
				}
				return nil
			})
		},
	}
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Abandon a play-through",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				if err := e.DeleteSavedInstance(ctx, st.UserID, st.Instance.ID); err != nil {
					return err
				}
				fmt.Printf("abandoned %q\n", st.Project.Title)
				return nil
			})
		},
	}
}

func teamCmd() *cobra.Command {
	team := &cobra.Command{Use: "team", Short: "Manage the development team"}
	team.AddCommand(teamListCmd())
	team.AddCommand(teamAddCmd())
	team.AddCommand(teamRemoveCmd())
	return team
}

func teamListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List the team roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				if viper.GetBool("json") {
					return printJSON(st.Team)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Level", "Salary", "Status"})
				completed := st.CompletedSprints()
				for _, d := range st.Team {
					status := "available"
					switch {
					case d.PermanentlyAbsent:
						status = "left"
					case d.Sick && !d.Available(completed):
						status = fmt.Sprintf("sick until sprint %d", d.SickUntilSprint)
					case d.MoraleBoost > 0:
						status = fmt.Sprintf("boosted +%d%%", d.MoraleBoost)
					}
					tw.AppendRow(table.Row{d.ID, d.Name, d.Level, d.Cost, status})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func teamAddCmd() *cobra.Command {
	var name, level string
	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Hire a developer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				dev, err := e.HireDeveloper(ctx, st, name, domain.ExperienceLevel(level))
				if err != nil {
					return err
				}
				return printJSONOrTable(dev)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "developer name")
	cmd.Flags().StringVar(&level, "level", "junior", "experience level (junior, mid, senior)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func teamRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <project-id> <developer-id>",
		Short: "Remove a developer from the team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				return e.RemoveDeveloper(ctx, st, args[1])
			})
		},
	}
}

func storyCmd() *cobra.Command {
	story := &cobra.Command{Use: "story", Short: "Manage the story backlog"}
	story.AddCommand(storyListCmd())
	story.AddCommand(storyAssignCmd())
	return story
}

func storyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List stories of a play-through",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				if viper.GetBool("json") {
					return printJSON(st.Stories)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Points", "Kind", "Progress", "Assignee"})
				for _, si := range st.Stories {
					assignee := ""
					if si.DeveloperID != nil {
						if dev := st.Developer(*si.DeveloperID); dev != nil {
							assignee = dev.Name
						}
					}
					progress := fmt.Sprintf("%d%%", si.Progress)
					if si.Complete {
						progress = "done"
					}
					tw.AppendRow(table.Row{si.ID, si.Story.Title, si.Story.Points, si.Story.Kind, progress, assignee})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func storyAssignCmd() *cobra.Command {
	var developerID string
	var unassign bool
	cmd := &cobra.Command{
		Use:   "assign <project-id> <story-instance-id>",
		Short: "Assign or unassign a story",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				var dev *string
				if !unassign {
					if developerID == "" {
						return fmt.Errorf("--developer required unless --unassign is set")
					}
					dev = &developerID
				}
				return e.AssignStory(ctx, st, args[1], dev)
			})
		},
	}
	cmd.Flags().StringVar(&developerID, "developer", "", "developer id")
	cmd.Flags().BoolVar(&unassign, "unassign", false, "clear the assignment")
	return cmd
}

func sprintCmd() *cobra.Command {
	sprint := &cobra.Command{Use: "sprint", Short: "Play and review sprints"}
	sprint.AddCommand(sprintStartCmd())
	sprint.AddCommand(sprintListCmd())
	return sprint
}

func sprintStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <project-id>",
		Short: "Play the next sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				res, err := e.StartSprint(ctx, st)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("sprint %d complete: revenue %d, budget %d, progress %d%%\n",
					res.Sprint.Number, res.Revenue, res.Budget, res.Sprint.Progress)
				if res.Finished {
					fmt.Println("the project is finished!")
				}
				return nil
			})
		},
	}
}

func sprintListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List played sprints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				if viper.GetBool("json") {
					return printJSON(st.Sprints)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Duration", "Progress", "Summary"})
				for _, s := range st.Sprints {
					tw.AppendRow(table.Row{s.Number, s.Duration, fmt.Sprintf("%d%%", s.Progress), s.Summary})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func challengeCmd() *cobra.Command {
	ch := &cobra.Command{Use: "challenge", Short: "Daily challenges"}
	ch.AddCommand(challengeShowCmd())
	ch.AddCommand(challengeApplyCmd())
	return ch
}

func challengeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show today's challenge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				e := engine.Engine{Repo: r, Now: time.Now}
				m := e.TodayChallenge()
				if viper.GetBool("json") {
					return printJSON(m)
				}
				fmt.Printf("%s: %s\n", m.Name, m.Description)
				return nil
			})
		},
	}
}

func challengeApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <project-id>",
		Short: "Apply today's challenge to a play-through",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, st *engine.State) error {
				res, err := e.ApplyDailyChallenge(ctx, st)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("applied %q\n", res.Challenge.Name)
				return nil
			})
		},
	}
}

func badgesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "badges",
		Short: "List earned badges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListBadges(ctx, viper.GetString("user"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"", "Badge", "Earned"})
				for _, b := range items {
					tw.AppendRow(table.Row{b.Icon, b.Description, b.AwardedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	var n int
	var evtType, instanceID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, instanceID, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&instanceID, "instance", "", "instance id filter")
	lg.AddCommand(tail)
	return lg
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := app.OpenWorkspace(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			e := engine.New(conn, nil)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("SCRUMLINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("SCRUMLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Scrumline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := app.OpenWorkspace(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

// withProjectEngine builds an engine tuned with the stored config of one
// catalog project.
func withProjectEngine(ctx context.Context, projectID string, fn func(context.Context, engine.Engine) error) error {
	conn, err := app.OpenWorkspace(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, r, projectID)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	e.Notify = printNotifier()
	return fn(ctx, e)
}

// withState resolves the user's play-through of a project and loads its
// full state before running fn.
func withState(ctx context.Context, projectID string, fn func(context.Context, engine.Engine, *engine.State) error) error {
	return withProjectEngine(ctx, projectID, func(ctx context.Context, e engine.Engine) error {
		user := viper.GetString("user")
		inst, err := e.Repo.FindInstance(ctx, projectID, user)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("no play-through of %q; run: sl project start %s", projectID, projectID)
			}
			return err
		}
		st, err := e.LoadState(ctx, inst.ID, user)
		if err != nil {
			return err
		}
		return fn(ctx, e, st)
	})
}

func printNotifier() notify.Notifier {
	return notify.Func(func(message string, severity notify.Severity) {
		fmt.Printf("[%s] %s\n", severity, message)
	})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
