package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"scrumline/internal/domain"
)

// Config models scrumline.yml: the simulation tuning for one catalog
// project. A per-project copy is stored in the DB so saved play-throughs
// keep the tuning they were started with.
type Config struct {
	Project struct {
		ID string `yaml:"id"`
	} `yaml:"project"`
	Simulation struct {
		SprintDuration  int                              `yaml:"sprint_duration"`
		RevenuePerPoint int                              `yaml:"revenue_per_point"`
		ProgressRolls   map[domain.ExperienceLevel]Range `yaml:"progress_rolls"`
		Workload        struct {
			PenaltyStep float64 `yaml:"penalty_step"`
			Floor       float64 `yaml:"floor"`
		} `yaml:"workload"`
		Events EventTuning `yaml:"events"`
	} `yaml:"simulation"`
	Costs map[domain.ExperienceLevel]int `yaml:"costs"`
}

// Range is an integer roll range, Min inclusive and Max exclusive.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// EventTuning holds the knobs of the random event system.
type EventTuning struct {
	BudgetCutMinPercent int `yaml:"budget_cut_min_percent"`
	BudgetCutMaxPercent int `yaml:"budget_cut_max_percent"`
	SickMinSprints      int `yaml:"sick_min_sprints"`
	SickMaxSprints      int `yaml:"sick_max_sprints"`
	BugPointsMin        int `yaml:"bug_points_min"`
	BugPointsMax        int `yaml:"bug_points_max"`
	MoraleBoostPercent  int `yaml:"morale_boost_percent"`
	MoraleBoostMaxDevs  int `yaml:"morale_boost_max_devs"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with sl project config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Simulation.SprintDuration <= 0 {
		return fmt.Errorf("config.simulation.sprint_duration must be positive")
	}
	if c.Simulation.RevenuePerPoint <= 0 {
		return fmt.Errorf("config.simulation.revenue_per_point must be positive")
	}
	for _, level := range domain.Levels() {
		r, ok := c.Simulation.ProgressRolls[level]
		if !ok {
			return fmt.Errorf("config.simulation.progress_rolls missing level %s", level)
		}
		if r.Min < 0 || r.Max <= r.Min {
			return fmt.Errorf("config.simulation.progress_rolls.%s must have 0 <= min < max", level)
		}
		cost, ok := c.Costs[level]
		if !ok {
			return fmt.Errorf("config.costs missing level %s", level)
		}
		if cost < 0 {
			return fmt.Errorf("config.costs.%s must not be negative", level)
		}
	}
	w := c.Simulation.Workload
	if w.PenaltyStep <= 0 || w.PenaltyStep >= 1 {
		return fmt.Errorf("config.simulation.workload.penalty_step must be in (0,1)")
	}
	if w.Floor <= 0 || w.Floor > 1 {
		return fmt.Errorf("config.simulation.workload.floor must be in (0,1]")
	}
	ev := c.Simulation.Events
	if ev.BudgetCutMinPercent < 0 || ev.BudgetCutMaxPercent < ev.BudgetCutMinPercent || ev.BudgetCutMaxPercent > 100 {
		return fmt.Errorf("config.simulation.events budget cut range invalid")
	}
	if ev.SickMinSprints < 1 || ev.SickMaxSprints < ev.SickMinSprints {
		return fmt.Errorf("config.simulation.events sick sprint range invalid")
	}
	if ev.BugPointsMin < 1 || ev.BugPointsMax < ev.BugPointsMin {
		return fmt.Errorf("config.simulation.events bug point range invalid")
	}
	if ev.MoraleBoostPercent < 0 || ev.MoraleBoostMaxDevs < 0 {
		return fmt.Errorf("config.simulation.events morale boost tuning invalid")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "scrumline.yml")
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	cfg.Project.ID = projectID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `project:
  id: ""

simulation:
  sprint_duration: 14
  revenue_per_point: 500

  progress_rolls:
    junior: { min: 20, max: 30 }
    mid: { min: 40, max: 50 }
    senior: { min: 60, max: 70 }

  workload:
    penalty_step: 0.1
    floor: 0.5

  events:
    budget_cut_min_percent: 10
    budget_cut_max_percent: 30
    sick_min_sprints: 1
    sick_max_sprints: 2
    bug_points_min: 2
    bug_points_max: 5
    morale_boost_percent: 25
    morale_boost_max_devs: 2

costs:
  junior: 1000
  mid: 2000
  senior: 3000
`
