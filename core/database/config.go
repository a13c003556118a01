package database

import (
	"fmt"
	"net/url"
	"strings"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverDynamoDB = "dynamodb"
)

// Config holds storage connection settings.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`

	// Path is the database file used by the sqlite3 driver.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// MigrationsDir replaces the embedded migrations with files on disk.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`

	Dynamo DynamoConfig `yaml:"dynamodb"`
}

// DynamoConfig configures the DynamoDB backend.
type DynamoConfig struct {
	Region string `yaml:"region" envconfig:"DYNAMO_REGION"`
	// Endpoint points the client at DynamoDB Local; tables are created on start when set.
	Endpoint    string `yaml:"endpoint" envconfig:"DYNAMO_ENDPOINT"`
	TablePrefix string `yaml:"table_prefix" envconfig:"DYNAMO_TABLE_NAME_PREFIX"`
}

// Normalize fills defaults and validates the driver specific settings.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "", "sqlite":
		c.Driver = DriverSQLite
	case "postgresql", "pg":
		c.Driver = DriverPostgres
	case "dynamo":
		c.Driver = DriverDynamoDB
	}

	switch c.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			c.Path = "feedbackbot.db"
		}
	case DriverPostgres:
		if c.Host == "" || c.Name == "" {
			return fmt.Errorf("database.host and database.name are required for %s", DriverPostgres)
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.MaxConnections <= 0 {
			c.MaxConnections = 10
		}
	case DriverDynamoDB:
		if c.Dynamo.TablePrefix == "" {
			c.Dynamo.TablePrefix = "feedbackbot"
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: %s, %s, %s", c.Driver, DriverPostgres, DriverSQLite, DriverDynamoDB)
	}
	return nil
}

// DSN returns the database/sql data source name for the configured SQL driver.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return "file:" + c.Path + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// MigrateURL returns the golang-migrate database URL.
func (c Config) MigrateURL() string {
	if c.Driver == DriverSQLite {
		return "sqlite3://" + c.Path + "?_foreign_keys=on"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// SQL reports whether the driver is served by database/sql.
func (c Config) SQL() bool {
	return c.Driver == DriverPostgres || c.Driver == DriverSQLite
}
