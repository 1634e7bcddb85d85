package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/thyrosim/internal/dose"
	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/physiology"
	"github.com/san-kum/thyrosim/internal/run"
)

// AppConfiguration holds the user-facing defaults of the CLI. The engine
// never reads it directly; Request converts it into a run.Request.
type AppConfiguration struct {
	Patient    PatientConfig    `yaml:"patient"`
	Secretion  SecretionConfig  `yaml:"secretion"`
	Absorption AbsorptionConfig `yaml:"absorption"`
	Days       float64          `yaml:"days" default:"5" validate:"gt=0,lte=3650"`
	Doses      []dose.Dose      `yaml:"doses,omitempty"`

	RecalculateInitialConditions bool `yaml:"recalculate_initial_conditions"`

	FreeFraction FreeFractionConfig `yaml:"free_fraction"`
	DataDir      string             `yaml:"data_dir" default:".thyrosim/runs" validate:"required"`
	Log          LogConfig          `yaml:"log"`
	MetricsFile  string             `yaml:"metrics_file,omitempty"`
}

type PatientConfig struct {
	Height float64        `yaml:"height" default:"1.70" validate:"gt=0,lte=3"`
	Weight float64        `yaml:"weight" default:"70" validate:"gt=0,lte=500"`
	Sex    physiology.Sex `yaml:"sex"`
}

// SecretionConfig is the percentage of normal thyroidal secretion.
type SecretionConfig struct {
	T4 float64 `yaml:"t4" default:"100" validate:"gte=0,lte=125"`
	T3 float64 `yaml:"t3" default:"100" validate:"gte=0,lte=125"`
}

// AbsorptionConfig is the percentage of an oral dose that is absorbed.
type AbsorptionConfig struct {
	T4 float64 `yaml:"t4" default:"88" validate:"gte=0,lte=100"`
	T3 float64 `yaml:"t3" default:"88" validate:"gte=0,lte=100"`
}

type FreeFractionConfig struct {
	T4 float64 `yaml:"t4" default:"0.0002" validate:"gt=0,lte=1"`
	T3 float64 `yaml:"t3" default:"0.003" validate:"gt=0,lte=1"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" default:"stderr" validate:"required"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *AppConfiguration {
	cfg := &AppConfiguration{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config: invalid default tags: %v", err))
	}
	return cfg
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*AppConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*AppConfiguration, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *AppConfiguration) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every violated field in one ErrInvalidParameter.
func (c *AppConfiguration) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", e.Namespace(), e.Tag(), e.Param(), e.Value()))
			}
			return dynamo.InvalidParameter("config: %s", strings.Join(msgs, "; "))
		}
		return dynamo.InvalidParameter("config: %v", err)
	}
	if c.Patient.Sex != physiology.Female && c.Patient.Sex != physiology.Male {
		return dynamo.InvalidParameter("config: unknown sex %d", int(c.Patient.Sex))
	}
	for i, d := range c.Doses {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("config: dose %d: %w", i, err)
		}
	}
	return nil
}

func (c *AppConfiguration) Profile() physiology.Profile {
	return physiology.Profile{Height: c.Patient.Height, Weight: c.Patient.Weight, Sex: c.Patient.Sex}
}

// Request builds a run request from the configuration. Extra doses are
// appended to the configured ones.
func (c *AppConfiguration) Request(extra ...dose.Dose) run.Request {
	ff := physiology.FreeFractions{T4: c.FreeFraction.T4, T3: c.FreeFraction.T3}
	doses := make([]dose.Dose, 0, len(c.Doses)+len(extra))
	doses = append(doses, c.Doses...)
	doses = append(doses, extra...)

	req := run.NewRequest(c.Profile(), c.Days, doses...)
	req.Secretion = physiology.Secretion{T4: c.Secretion.T4, T3: c.Secretion.T3}
	req.Absorption = dose.Absorption{T4: c.Absorption.T4, T3: c.Absorption.T3}
	req.RecalculateInitialConditions = c.RecalculateInitialConditions
	req.FreeFractions = &ff
	return req
}
