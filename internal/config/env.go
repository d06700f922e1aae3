package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CALMGR"

// ApplyEnv overlays CALMGR_* environment variables on cfg. Only variables
// that are set take effect; the file values stay otherwise.
func ApplyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	_ = v.BindEnv("listen", "CALMGR_LISTEN")
	_ = v.BindEnv("timezone", "CALMGR_TIMEZONE", "TZ_NAME")
	_ = v.BindEnv("refresh", "CALMGR_REFRESH")
	_ = v.BindEnv("cache_dir", "CALMGR_CACHE_DIR")
	_ = v.BindEnv("log_level", "CALMGR_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("auth_user", "CALMGR_AUTH_USER")
	_ = v.BindEnv("auth_password", "CALMGR_AUTH_PASSWORD")

	set := func(key string, dst *string) {
		if v.IsSet(key) {
			if val := strings.TrimSpace(v.GetString(key)); val != "" {
				*dst = val
			}
		}
	}
	set("listen", &cfg.Listen)
	set("timezone", &cfg.Timezone)
	set("refresh", &cfg.RefreshCron)
	set("cache_dir", &cfg.CacheDir)
	set("log_level", &cfg.LogLevel)

	user := strings.TrimSpace(v.GetString("auth_user"))
	pass := v.GetString("auth_password")
	if user != "" && pass != "" {
		cfg.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}

	cfg.Normalize()
}
