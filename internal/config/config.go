package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr           string
		AllowedOrigins string
		TrustedProxies string
	}
	Database struct {
		Path string
	}
	Assets struct {
		Driver string
		Dir    string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Geo struct {
		DBPath string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
		BcryptCost      int
	}
	Chat struct {
		BotName string
	}
	Document struct {
		FontPath string
	}
	Log struct {
		Level string
	}
}

// Origins splits the comma separated allowed origin list.
func (c Config) Origins() []string {
	return splitList(c.Server.AllowedOrigins)
}

// Proxies lists the reverse proxies whose forwarding headers are trusted.
func (c Config) Proxies() []string {
	return splitList(c.Server.TrustedProxies)
}

func splitList(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("DRYENGINEER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:3001")
	v.SetDefault("server.allowedorigins", "http://localhost:3000")
	v.SetDefault("server.trustedproxies", "")
	v.SetDefault("database.path", "db/dryengineer.sqlite")
	v.SetDefault("assets.driver", "local")
	v.SetDefault("assets.dir", "uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "icons")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("geo.dbpath", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 720)
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("chat.botname", "DryBot")
	v.SetDefault("document.fontpath", "")
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch cfg.Assets.Driver {
	case "local", "s3":
	default:
		return Config{}, fmt.Errorf("unknown assets driver %q", cfg.Assets.Driver)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if !ok || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
