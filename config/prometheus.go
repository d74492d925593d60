package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Global struct {
	ScrapeInterval string         `yaml:"scrape_interval"`
	ExternalLabels ExternalLabels `yaml:"external_labels"`
}

type ExternalLabels struct {
	Monitor string `yaml:"monitor"`
}

type ScrapeConfig struct {
	JobName        string         `yaml:"job_name"`
	ScrapeInterval string         `yaml:"scrape_interval"`
	StaticConfigs  []StaticConfig `yaml:"static_configs"`
}

type StaticConfig struct {
	Targets []string `yaml:"targets"`
}

type PromConfig struct {
	Global        Global         `yaml:"global"`
	ScrapeConfigs []ScrapeConfig `yaml:"scrape_configs"`
}

// NewPromConfig builds a scrape configuration with one job for the registry and one per relay and per user.
func (c *Config) NewPromConfig() PromConfig {
	promCfg := PromConfig{
		Global: Global{
			ScrapeInterval: "15s",
			ExternalLabels: ExternalLabels{
				Monitor: "onion-router",
			},
		},
		ScrapeConfigs: []ScrapeConfig{
			{
				JobName:        "registry",
				ScrapeInterval: "5s",
				StaticConfigs: []StaticConfig{
					{
						Targets: []string{fmt.Sprintf("%s:%d", c.Registry.Host, c.PrometheusPort)},
					},
				},
			},
		},
	}

	for id := 0; id < c.NumRelays; id++ {
		promCfg.ScrapeConfigs = append(promCfg.ScrapeConfigs, ScrapeConfig{
			JobName:        fmt.Sprintf("relay-%d", id),
			ScrapeInterval: "5s",
			StaticConfigs: []StaticConfig{
				{
					Targets: []string{fmt.Sprintf("%s:%d", c.RelayHost, c.RelayPrometheusPort(id))},
				},
			},
		})
	}

	for id := 0; id < c.NumUsers; id++ {
		promCfg.ScrapeConfigs = append(promCfg.ScrapeConfigs, ScrapeConfig{
			JobName:        fmt.Sprintf("user-%d", id),
			ScrapeInterval: "5s",
			StaticConfigs: []StaticConfig{
				{
					Targets: []string{fmt.Sprintf("%s:%d", c.UserHost, c.UserPrometheusPort(id))},
				},
			},
		})
	}

	return promCfg
}

// InitPrometheusConfig writes the scrape configuration to path.
func (c *Config) InitPrometheusConfig(path string) error {
	promCfg := c.NewPromConfig()

	data, err := yaml.Marshal(&promCfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal prometheus config")
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open file for writing")
	}
	defer file.Close()

	if _, err = file.Write(data); err != nil {
		return errors.Wrap(err, "failed to write prometheus config to file")
	}

	// flush to disk so a prometheus container started right after sees it
	if err = file.Sync(); err != nil {
		return errors.Wrap(err, "failed to flush prometheus config to disk")
	}

	slog.Info("prometheus config written to file", "path", path)

	return nil
}
