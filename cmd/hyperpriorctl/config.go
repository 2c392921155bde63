package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hyperprior/pkg/hyperprior"
)

// runConfig is the YAML run description consumed by the CLI. Data rows come
// either from one CSV split round-robin across `batches`, or from one CSV
// per batch.
type runConfig struct {
	RunID    string `yaml:"run_id"`
	Model    string `yaml:"model"`
	Features int    `yaml:"features"`

	PriorShape    float64 `yaml:"prior_shape"`
	PriorRate     float64 `yaml:"prior_rate"`
	PriorMean     float64 `yaml:"prior_mean"`
	PriorVariance float64 `yaml:"prior_variance"`
	NoiseVariance float64 `yaml:"noise_variance"`

	Data      string   `yaml:"data"`
	DataFiles []string `yaml:"data_files"`
	Batches   int      `yaml:"batches"`

	Passes     int `yaml:"passes"`
	Iterations int `yaml:"iterations"`
}

func loadRunConfig(path string) (runConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return runConfig{}, err
	}
	var cfg runConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return runConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return runConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *runConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = string(hyperprior.ModelScale)
	}
	if c.PriorShape == 0 {
		c.PriorShape = 1
	}
	if c.PriorRate == 0 {
		c.PriorRate = 1
	}
	if c.PriorVariance == 0 {
		c.PriorVariance = 1
	}
	if c.NoiseVariance == 0 {
		c.NoiseVariance = 1
	}
	if c.Batches == 0 {
		c.Batches = 1
	}
	if c.Passes == 0 {
		c.Passes = 2
	}
	if c.Iterations == 0 {
		c.Iterations = 1
	}
}

func (c *runConfig) validate() error {
	if c.Features <= 0 {
		return fmt.Errorf("features must be > 0")
	}
	if c.Data == "" && len(c.DataFiles) == 0 {
		return fmt.Errorf("either data or data_files is required")
	}
	if c.Data != "" && len(c.DataFiles) > 0 {
		return fmt.Errorf("data and data_files are mutually exclusive")
	}
	if c.Batches <= 0 {
		return fmt.Errorf("batches must be > 0")
	}
	return nil
}

func (c *runConfig) sessionRequest() hyperprior.SessionRequest {
	return hyperprior.SessionRequest{
		Model:         hyperprior.ModelKind(c.Model),
		Features:      c.Features,
		PriorShape:    c.PriorShape,
		PriorRate:     c.PriorRate,
		PriorMean:     c.PriorMean,
		PriorVariance: c.PriorVariance,
		NoiseVariance: c.NoiseVariance,
		RunID:         c.RunID,
	}
}
