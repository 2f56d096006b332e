package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models alertline.yml.
type Config struct {
	Service struct {
		ID string `yaml:"id"`
	} `yaml:"service"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Roles struct {
		Catalog map[string]Role `yaml:"catalog"`
	} `yaml:"roles"`
	Notifications struct {
		// Categories maps entity type to the notification category stamped
		// on notifications produced for that type.
		Categories      map[string]string `yaml:"categories"`
		DefaultCategory string            `yaml:"default_category"`
	} `yaml:"notifications"`
	Auth struct {
		AllowUserHeader bool `yaml:"allow_user_header"`
	} `yaml:"auth"`
	Seed struct {
		Users []SeedUser `yaml:"users"`
	} `yaml:"seed"`
}

type Role struct {
	Description string `yaml:"description"`
}

type SeedUser struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	Roles       []string `yaml:"roles"`
}

// CategoryFor returns the notification category for an entity type.
func (c *Config) CategoryFor(entityType string) string {
	if cat, ok := c.Notifications.Categories[entityType]; ok && cat != "" {
		return cat
	}
	if c.Notifications.DefaultCategory != "" {
		return c.Notifications.DefaultCategory
	}
	return "general"
}

// KnownRole reports whether roleID is declared in the catalog.
func (c *Config) KnownRole(roleID string) bool {
	_, ok := c.Roles.Catalog[roleID]
	return ok
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	cfg, err := FromFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config %s not found; generate one with al config init", path)
	}
	return cfg, err
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := FromFile(Path(workspace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return cfg, err
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Service.ID == "" {
		return fmt.Errorf("config.service.id is required")
	}
	if len(c.Roles.Catalog) == 0 {
		return fmt.Errorf("config.roles.catalog is required")
	}
	if _, ok := c.Roles.Catalog["admin"]; !ok {
		return fmt.Errorf("config.roles.catalog must include admin")
	}
	for roleID := range c.Roles.Catalog {
		if roleID == "" {
			return fmt.Errorf("config.roles.catalog contains empty role id")
		}
	}
	for entityType, category := range c.Notifications.Categories {
		if entityType == "" {
			return fmt.Errorf("config.notifications.categories has empty entity type")
		}
		if category == "" {
			return fmt.Errorf("category for entity type %s is empty", entityType)
		}
	}
	for _, u := range c.Seed.Users {
		if u.ID == "" {
			return fmt.Errorf("config.seed.users contains entry without id")
		}
		for _, roleID := range u.Roles {
			if _, ok := c.Roles.Catalog[roleID]; !ok {
				return fmt.Errorf("seed user %s references unknown role %s", u.ID, roleID)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "alertline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(serviceID string) string {
	return fmt.Sprintf(defaultTemplate, serviceID)
}

// Default returns the default Config struct.
func Default(serviceID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, serviceID)), &cfg)
	cfg.Service.ID = serviceID
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

const defaultTemplate = `service:
  id: %s

log:
  level: info
  format: console

roles:
  catalog:
    admin:
      description: "Administers notification rules"
    hr:
      description: "Human resources"
    sales:
      description: "Sales staff"
    support:
      description: "Support agents"
    finance:
      description: "Finance and invoicing"

notifications:
  default_category: general
  categories:
    order: sales
    quotation: sales
    ticket: support
    vacation_request: hr

auth:
  allow_user_header: false
`
