package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bollardhq/bollard/pkg/types"
)

const (
	// MinScale and MaxScale bound the replica count accepted anywhere a
	// scale is read (config file or the scale command).
	MinScale = 1
	MaxScale = 10
)

// Config is the full operator-provided configuration, loaded once per
// invocation and passed into component constructors.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Nginx   NginxConfig   `yaml:"nginx"`
	Certbot CertbotConfig `yaml:"certbot"`
	Notify  NotifyConfig  `yaml:"notify"`
	Health  HealthConfig  `yaml:"health"`
	Paths   PathsConfig   `yaml:"paths"`
	Apps    []AppConfig   `yaml:"apps"`
}

// ServerConfig describes the host this orchestrator runs on.
type ServerConfig struct {
	// PublicIP is the address DNS records must resolve to before a
	// certificate is requested. Empty means DNS cannot be verified and
	// acquisition is skipped.
	PublicIP string `yaml:"public_ip"`
	// DockerHost overrides the Docker daemon address (default: environment).
	DockerHost string `yaml:"docker_host"`
}

// NginxConfig locates the load balancer's configuration.
type NginxConfig struct {
	// ConfDir holds one <app>.conf per application.
	ConfDir string `yaml:"conf_dir"`
	// StagingDir receives rendered configs before validation.
	StagingDir string `yaml:"staging_dir"`
	// Binary is the nginx executable used for -t and -s reload.
	Binary string `yaml:"binary"`
}

// CertbotConfig configures the certificate authority client.
type CertbotConfig struct {
	Binary  string `yaml:"binary"`
	Email   string `yaml:"email"`
	Webroot string `yaml:"webroot"`
	// Staging uses the Let's Encrypt staging endpoint (test environments).
	Staging bool `yaml:"staging"`
}

// NotifyConfig configures deployment status emails.
type NotifyConfig struct {
	APIURL   string        `yaml:"api_url"`
	APIToken string        `yaml:"api_token"`
	From     string        `yaml:"from"`
	To       []string      `yaml:"to"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Enabled reports whether notifications are configured at all.
func (n NotifyConfig) Enabled() bool {
	return n.APIURL != "" && len(n.To) > 0
}

// HealthConfig tunes the health-check polling loops.
type HealthConfig struct {
	Interval time.Duration `yaml:"interval"`
	// StartTimeout bounds health checks for fresh starts.
	StartTimeout time.Duration `yaml:"start_timeout"`
	// WarmupTimeout bounds health checks for rolling replacements, which
	// may run migrations or precompile assets before answering.
	WarmupTimeout time.Duration `yaml:"warmup_timeout"`
	// SettleDelay separates ordinals during a rolling restart.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// PathsConfig locates bollard's own files.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir"`   // bolt release history
	LogDir    string `yaml:"log_dir"`    // deployments.log, release.log
	Workspace string `yaml:"workspace"`  // app repository checkouts
	LockDir   string `yaml:"lock_dir"`   // advisory deploy locks, one per app
	Metrics   string `yaml:"metrics"`    // prometheus textfile, empty disables
}

// AppConfig is the YAML shape of one application.
type AppConfig struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"`
	RepoURL       string   `yaml:"repo_url"`
	Branch        string   `yaml:"branch"`
	Domain        string   `yaml:"domain"`
	AltDomains    []string `yaml:"alt_domains"`
	Scale         int      `yaml:"scale"`
	BasePort      int      `yaml:"base_port"`
	ContainerPort int      `yaml:"container_port"`
	HealthPath    string   `yaml:"health_path"`
	Env           []string `yaml:"env"`
}

// Load reads, parses, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Nginx.Binary == "" {
		c.Nginx.Binary = "nginx"
	}
	if c.Nginx.ConfDir == "" {
		c.Nginx.ConfDir = "/etc/nginx/conf.d"
	}
	if c.Nginx.StagingDir == "" {
		c.Nginx.StagingDir = "/etc/nginx/staging"
	}
	if c.Certbot.Binary == "" {
		c.Certbot.Binary = "certbot"
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = 10 * time.Second
	}
	if c.Health.Interval == 0 {
		c.Health.Interval = 2 * time.Second
	}
	if c.Health.StartTimeout == 0 {
		c.Health.StartTimeout = 60 * time.Second
	}
	if c.Health.WarmupTimeout == 0 {
		c.Health.WarmupTimeout = 180 * time.Second
	}
	if c.Health.SettleDelay == 0 {
		c.Health.SettleDelay = 5 * time.Second
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "/var/lib/bollard"
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = "/var/log/bollard"
	}
	if c.Paths.Workspace == "" {
		c.Paths.Workspace = "/var/lib/bollard/src"
	}
	if c.Paths.LockDir == "" {
		c.Paths.LockDir = "/var/lib/bollard/locks"
	}
	for i := range c.Apps {
		app := &c.Apps[i]
		if app.Branch == "" {
			app.Branch = "main"
		}
		if app.Scale == 0 {
			app.Scale = 1
		}
		if app.HealthPath == "" {
			app.HealthPath = "/"
		}
		if app.ContainerPort == 0 {
			app.ContainerPort = 3000
		}
	}
}

// Validate rejects configurations that would misbehave at deploy time.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i := range c.Apps {
		app := &c.Apps[i]
		if app.Name == "" {
			return fmt.Errorf("app %d: name is required", i)
		}
		if seen[app.Name] {
			return fmt.Errorf("app %s: duplicate name", app.Name)
		}
		seen[app.Name] = true

		switch types.AppType(app.Type) {
		case types.AppTypeRails, types.AppTypeNextjs:
		default:
			return fmt.Errorf("app %s: unsupported type %q", app.Name, app.Type)
		}
		if app.Domain == "" {
			return fmt.Errorf("app %s: domain is required", app.Name)
		}
		if app.BasePort <= 0 {
			return fmt.Errorf("app %s: base_port is required", app.Name)
		}
		if app.Scale < MinScale || app.Scale > MaxScale {
			return fmt.Errorf("app %s: scale must be between %d and %d", app.Name, MinScale, MaxScale)
		}
	}
	return nil
}

// App resolves a configured application by name.
func (c *Config) App(name string) (*types.App, error) {
	for i := range c.Apps {
		if c.Apps[i].Name == name {
			return c.Apps[i].toApp(), nil
		}
	}
	return nil, fmt.Errorf("app %s not found in configuration", name)
}

func (a *AppConfig) toApp() *types.App {
	return &types.App{
		Name:          a.Name,
		Type:          types.AppType(a.Type),
		RepoURL:       a.RepoURL,
		Branch:        a.Branch,
		Domain:        a.Domain,
		AltDomains:    a.AltDomains,
		Scale:         a.Scale,
		BasePort:      a.BasePort,
		ContainerPort: a.ContainerPort,
		HealthPath:    a.HealthPath,
		Env:           a.Env,
	}
}
