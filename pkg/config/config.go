// Package config loads the run parameters of a navigation run from defaults, an optional config
// file, GRIDNAV_* environment variables and bound command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lintang-b-s/gridnav/pkg"
	"github.com/lintang-b-s/gridnav/pkg/navigation"
	"github.com/lintang-b-s/gridnav/pkg/planner"
	"github.com/lintang-b-s/gridnav/pkg/util"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "GRIDNAV"

// viper keys
const (
	KeyTimeBudgetSeconds   = "time_budget_seconds"
	KeySensingRadius       = "sensing_radius"
	KeyGoalThreshold       = "goal_threshold"
	KeyInitialEpsilon      = "initial_epsilon"
	KeyPlanner             = "planner"
	KeyStopAtFirstSolution = "stop_at_first_solution"
	KeySeed                = "seed"
	KeyMaxCycles           = "max_cycles"
	KeyConnectivity        = "connectivity"
	KeySolutionPath        = "solution_path"
	KeyLogLevel            = "log_level"
)

var ErrInvalidParams = errors.New("config: invalid run parameters")

// RunParams immutable configuration of one navigation run.
type RunParams struct {
	TimeBudget          time.Duration `validate:"gt=0"`
	SensingRadius       int           `validate:"gte=0"`
	GoalThreshold       int           `validate:"gte=0"`
	InitialEpsilon      float64       `validate:"gte=1"`
	Planner             string        `validate:"oneof=arastar adstar rstar anastar"`
	StopAtFirstSolution bool
	Seed                int64
	MaxCycles           int    `validate:"gte=0"`
	Connectivity        int    `validate:"oneof=8 16"`
	SolutionPath        string `validate:"required"`
	LogLevel            string `validate:"oneof=debug info warn error"`
}

func DefaultRunParams() RunParams {
	return RunParams{
		TimeBudget:     time.Duration(pkg.DEFAULT_TIME_BUDGET_SECONDS * float64(time.Second)),
		SensingRadius:  pkg.DEFAULT_SENSING_RADIUS,
		GoalThreshold:  pkg.DEFAULT_GOAL_THRESHOLD,
		InitialEpsilon: pkg.DEFAULT_INITIAL_EPSILON,
		Planner:        pkg.DEFAULT_PLANNER,
		Seed:           pkg.DEFAULT_SEED,
		Connectivity:   pkg.DEFAULT_CONNECTIVITY,
		SolutionPath:   pkg.DEFAULT_SOLUTION_PATH,
		LogLevel:       "info",
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultRunParams()
	v.SetDefault(KeyTimeBudgetSeconds, d.TimeBudget.Seconds())
	v.SetDefault(KeySensingRadius, d.SensingRadius)
	v.SetDefault(KeyGoalThreshold, d.GoalThreshold)
	v.SetDefault(KeyInitialEpsilon, d.InitialEpsilon)
	v.SetDefault(KeyPlanner, d.Planner)
	v.SetDefault(KeyStopAtFirstSolution, d.StopAtFirstSolution)
	v.SetDefault(KeySeed, d.Seed)
	v.SetDefault(KeyMaxCycles, d.MaxCycles)
	v.SetDefault(KeyConnectivity, d.Connectivity)
	v.SetDefault(KeySolutionPath, d.SolutionPath)
	v.SetDefault(KeyLogLevel, d.LogLevel)
}

// Load reads the run parameters into v and validates them. configFile may be empty, then
// ./data/config.* is used if present.
func Load(v *viper.Viper, configFile string) (RunParams, error) {
	setDefaults(v)
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := util.ReadConfig(v, configFile); err != nil {
		return RunParams{}, err
	}

	params := RunParams{
		TimeBudget:          time.Duration(v.GetFloat64(KeyTimeBudgetSeconds) * float64(time.Second)),
		SensingRadius:       v.GetInt(KeySensingRadius),
		GoalThreshold:       v.GetInt(KeyGoalThreshold),
		InitialEpsilon:      v.GetFloat64(KeyInitialEpsilon),
		Planner:             strings.ToLower(v.GetString(KeyPlanner)),
		StopAtFirstSolution: v.GetBool(KeyStopAtFirstSolution),
		Seed:                v.GetInt64(KeySeed),
		MaxCycles:           v.GetInt(KeyMaxCycles),
		Connectivity:        v.GetInt(KeyConnectivity),
		SolutionPath:        v.GetString(KeySolutionPath),
		LogLevel:            strings.ToLower(v.GetString(KeyLogLevel)),
	}
	if err := params.Validate(); err != nil {
		return RunParams{}, err
	}
	return params, nil
}

// Validate returns ErrInvalidParams with one english message per invalid field.
func (p RunParams) Validate() error {
	validate := validator.New()
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)
	vv := translateError(err, trans)
	vvString := make([]string, 0, len(vv))
	for _, v := range vv {
		vvString = append(vvString, v.Error())
	}
	return util.WrapErrorf(err, ErrInvalidParams, "validation error: %v", vvString)
}

func translateError(err error, trans ut.Translator) []error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}
	errs := make([]error, 0, len(verrs))
	for _, e := range verrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}

func (p RunParams) Family() (planner.Family, error) {
	return planner.ParseFamily(p.Planner)
}

func (p RunParams) PlannerOptions() planner.Options {
	return planner.Options{
		InitialEpsilon:      p.InitialEpsilon,
		StopAtFirstSolution: p.StopAtFirstSolution,
		Seed:                p.Seed,
	}
}

func (p RunParams) NavigationParams() navigation.Params {
	return navigation.Params{
		TimeBudget:    p.TimeBudget,
		SensingRadius: p.SensingRadius,
		GoalThreshold: p.GoalThreshold,
		MaxCycles:     p.MaxCycles,
	}
}

func (p RunParams) String() string {
	return fmt.Sprintf("planner=%s budget=%v radius=%d goal_threshold=%d eps=%.2f first_solution=%t seed=%d connectivity=%d",
		p.Planner, p.TimeBudget, p.SensingRadius, p.GoalThreshold, p.InitialEpsilon, p.StopAtFirstSolution, p.Seed,
		p.Connectivity)
}
