package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
		CORSOrigins     []string
	}

	// SurveyForms holds the survey platform asset ids of every form the portal reads.
	SurveyForms struct {
		Main           string
		Change         string
		AdvancedUT3    string
		AdvancedUT4    string
		EarlyUT3       string
		EarlyUT4       string
		Innovator1     string
		Innovator2     string
		Innovator3     string
		DomainAdvanced string
		DomainEarly    string
	}

	SurveyConfig struct {
		BaseURL           string
		Token             string
		AuthScheme        string
		RequestsPerSecond float64
		Burst             int
		Timeout           time.Duration
		Forms             SurveyForms
	}

	BlobKeys struct {
		Tasks      string
		Notes      string
		ToolStatus string
	}

	BlobConfig struct {
		Backend      string // gcs | s3 | azure | memory
		Bucket       string
		Region       string
		Endpoint     string
		Prefix       string
		SASURL       string
		EmulatorHost string
		Keys         BlobKeys
	}

	AccessConfig struct {
		Admins       []string
		Coordinators []string
	}

	WebhookConfig struct {
		TranslationURL string
		Timeout        time.Duration
	}

	Config struct {
		Env                    string
		Debug                  bool
		TestMode               bool
		AppName                string
		Build                  string
		SecretKey              string
		SessionExpirationDelta time.Duration
		SessionRefreshDelta    time.Duration
		RollbarToken           string
		WorkDir                string
		Server                 ServerConfig
		Survey                 SurveyConfig
		Blob                   BlobConfig
		Access                 AccessConfig
		Webhook                WebhookConfig
	}
)

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "MDII Portal")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "n7#q1v+5t@k2$w8)zx!m4e(r9u=yb0&c6h^jd3_gfp%la")
	v.SetDefault("sessionExpirationDelta", 7*24*time.Hour)
	v.SetDefault("sessionRefreshDelta", 30*24*time.Hour)
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.corsOrigins", "http://localhost:3000")

	v.SetDefault("survey.baseURL", "https://kf.kobotoolbox.org")
	v.SetDefault("survey.token", "")
	v.SetDefault("survey.authScheme", "Token")
	v.SetDefault("survey.requestsPerSecond", 5.0)
	v.SetDefault("survey.burst", 10)
	v.SetDefault("survey.timeout", 30*time.Second)
	for _, form := range []string{
		"main", "change", "advancedUT3", "advancedUT4", "earlyUT3", "earlyUT4",
		"innovator1", "innovator2", "innovator3", "domainAdvanced", "domainEarly",
	} {
		v.SetDefault("survey.forms."+form, "")
	}

	v.SetDefault("blob.backend", "memory")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.region", "")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.prefix", "")
	v.SetDefault("blob.sasURL", "")
	v.SetDefault("blob.emulatorHost", "")
	v.SetDefault("blob.keys.tasks", "tasks.csv")
	v.SetDefault("blob.keys.notes", "notes.csv")
	v.SetDefault("blob.keys.toolStatus", "tool_status.csv")

	v.SetDefault("access.admins", "")
	v.SetDefault("access.coordinators", "")

	v.SetDefault("webhook.translationURL", "")
	v.SetDefault("webhook.timeout", 15*time.Second)
}

// NewConfig loads the configuration for the current ENV (DEV (default), TEST, QA, PROD).
// Values come from defaults, then `config/.env.<env>` (if present), then <ENV>_* environment variables.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return configFrom(v, env, wd)
}

func configFrom(v *viper.Viper, env, wd string) *Config {
	return &Config{
		Env:                    env,
		Debug:                  v.GetBool("debug"),
		TestMode:               v.GetBool("testMode"),
		AppName:                v.GetString("appName"),
		Build:                  v.GetString("build"),
		SecretKey:              v.GetString("secretKey"),
		SessionExpirationDelta: v.GetDuration("sessionExpirationDelta"),
		SessionRefreshDelta:    v.GetDuration("sessionRefreshDelta"),
		RollbarToken:           v.GetString("rollbarToken"),
		WorkDir:                wd,
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
			CORSOrigins:     SplitList(v.GetString("server.corsOrigins")),
		},
		Survey: SurveyConfig{
			BaseURL:           strings.TrimRight(v.GetString("survey.baseURL"), "/"),
			Token:             v.GetString("survey.token"),
			AuthScheme:        v.GetString("survey.authScheme"),
			RequestsPerSecond: v.GetFloat64("survey.requestsPerSecond"),
			Burst:             v.GetInt("survey.burst"),
			Timeout:           v.GetDuration("survey.timeout"),
			Forms: SurveyForms{
				Main:           v.GetString("survey.forms.main"),
				Change:         v.GetString("survey.forms.change"),
				AdvancedUT3:    v.GetString("survey.forms.advancedUT3"),
				AdvancedUT4:    v.GetString("survey.forms.advancedUT4"),
				EarlyUT3:       v.GetString("survey.forms.earlyUT3"),
				EarlyUT4:       v.GetString("survey.forms.earlyUT4"),
				Innovator1:     v.GetString("survey.forms.innovator1"),
				Innovator2:     v.GetString("survey.forms.innovator2"),
				Innovator3:     v.GetString("survey.forms.innovator3"),
				DomainAdvanced: v.GetString("survey.forms.domainAdvanced"),
				DomainEarly:    v.GetString("survey.forms.domainEarly"),
			},
		},
		Blob: BlobConfig{
			Backend:      strings.ToLower(v.GetString("blob.backend")),
			Bucket:       v.GetString("blob.bucket"),
			Region:       v.GetString("blob.region"),
			Endpoint:     v.GetString("blob.endpoint"),
			Prefix:       v.GetString("blob.prefix"),
			SASURL:       v.GetString("blob.sasURL"),
			EmulatorHost: v.GetString("blob.emulatorHost"),
			Keys: BlobKeys{
				Tasks:      v.GetString("blob.keys.tasks"),
				Notes:      v.GetString("blob.keys.notes"),
				ToolStatus: v.GetString("blob.keys.toolStatus"),
			},
		},
		Access: AccessConfig{
			Admins:       SplitList(v.GetString("access.admins")),
			Coordinators: SplitList(v.GetString("access.coordinators")),
		},
		Webhook: WebhookConfig{
			TranslationURL: v.GetString("webhook.translationURL"),
			Timeout:        v.GetDuration("webhook.timeout"),
		},
	}
}

// NewTestConfig returns the defaults with test mode on. It does not read the environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("testMode", true)
	wd, _ := os.Getwd()
	return configFrom(v, "TEST", wd)
}
