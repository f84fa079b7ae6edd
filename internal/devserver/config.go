package devserver

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the stub server settings, loaded from environment
// variables or an optional .env file. Environment variables win.
type Config struct {
	Addr         string // bind address
	Guid         string // instance guid served under /apprapp paths
	SnapshotPath string // configuration document served to clients
	AdminAPIKey  string // bearer token required to replace the document
}

// LoadConfig reads the stub server configuration via viper.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig() // .env is optional
	v.AutomaticEnv()

	v.SetDefault("APPCONFIG_ADDR", ":8090")
	v.SetDefault("APPCONFIG_GUID", "local")
	v.SetDefault("APPCONFIG_SNAPSHOT", "appconfig.json")
	v.SetDefault("APPCONFIG_ADMIN_KEY", "admin-local")

	cfg := &Config{
		Addr:         v.GetString("APPCONFIG_ADDR"),
		Guid:         v.GetString("APPCONFIG_GUID"),
		SnapshotPath: v.GetString("APPCONFIG_SNAPSHOT"),
		AdminAPIKey:  v.GetString("APPCONFIG_ADMIN_KEY"),
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("APPCONFIG_ADDR cannot be empty")
	}
	if cfg.Guid == "" {
		return nil, fmt.Errorf("APPCONFIG_GUID cannot be empty")
	}
	return cfg, nil
}
