package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AllowedOrigins            []string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver    string // local | s3
		RootDir   string
		Bucket    string
		Region    string
		Endpoint  string
		AccessKey string
		SecretKey string
	}

	RealtimeConfig struct {
		PGBridge bool
		Channel  string
	}

	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		InMemory         bool // run against the in-memory store (demo / tests)

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Realtime RealtimeConfig
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig reads the configuration from the environment (prefixed by ENV) on top of the defaults.
// A `config/.env.<env>` file is loaded first if it exists.
func NewConfig() *Config {
	conf := viper.New()

	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "SDO IMS")
	conf.SetDefault("secretKey", "m8b!x0q^+zj7t4w(8n2lkq#v=9e6s0a1g$yr3d5u)h-p_cfo")
	conf.SetDefault("defaultFromName", "SDO IMS")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("inMemory", false)

	conf.SetDefault("serverHost", ":8000")
	conf.SetDefault("serverDebugHost", ":4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("allowedOrigins", "http://localhost:3000")

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", 5432)
	conf.SetDefault("dbName", "sdoims")
	conf.SetDefault("dbUser", "sdoims")
	conf.SetDefault("dbPassword", "sdoims")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "postgres")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("storageDriver", "local")
	conf.SetDefault("storageRootDir", "uploads")
	conf.SetDefault("storageBucket", "")
	conf.SetDefault("storageRegion", "us-east-1")
	conf.SetDefault("storageEndpoint", "")
	conf.SetDefault("storageAccessKey", "")
	conf.SetDefault("storageSecretKey", "")

	conf.SetDefault("realtimePGBridge", false)
	conf.SetDefault("realtimeChannel", "sdoims_events")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:       env,
		Build:     conf.GetString("build"),
		Debug:     conf.GetBool("debug"),
		TestMode:  env == "TEST",
		AppName:   conf.GetString("appName"),
		SecretKey: conf.GetString("secretKey"),
		DefaultFromEmail: mail.Address{
			Name:    conf.GetString("defaultFromName"),
			Address: conf.GetString("defaultFromEmail"),
		},
		FrontendBaseURL: conf.GetString("frontendBaseURL"),
		RollbarToken:    conf.GetString("rollbarToken"),
		SendgridApiKey:  conf.GetString("sendgridApiKey"),
		InMemory:        conf.GetBool("inMemory"),
		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			DebugHost:                 conf.GetString("serverDebugHost"),
			ShutdownTimeout:           conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
			AllowedOrigins:            splitList(conf.GetString("allowedOrigins")),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetInt("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(conf.GetString("storageDriver")),
			RootDir:   conf.GetString("storageRootDir"),
			Bucket:    conf.GetString("storageBucket"),
			Region:    conf.GetString("storageRegion"),
			Endpoint:  conf.GetString("storageEndpoint"),
			AccessKey: conf.GetString("storageAccessKey"),
			SecretKey: conf.GetString("storageSecretKey"),
		},
		Realtime: RealtimeConfig{
			PGBridge: conf.GetBool("realtimePGBridge"),
			Channel:  conf.GetString("realtimeChannel"),
		},
	}
}

// NewTestConfig returns the configuration used by package tests.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "SDO IMS",
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Name: "SDO IMS", Address: "noreply@localhost"},
		FrontendBaseURL:  "http://localhost:3000",
		InMemory:         true,
		Server: ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Storage:  StorageConfig{Driver: "local"},
		Realtime: RealtimeConfig{Channel: "sdoims_events"},
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
