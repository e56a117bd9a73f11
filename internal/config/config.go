// Package config defines the externally supplied tuning surface of the
// batch engine. Score weights, section quotas, caps and thresholds are all
// configuration so they can be tuned without code changes; a config that
// fails validation stops the process before any scoring starts.
package config

import "time"

type Config struct {
	App             AppConfig             `koanf:"app"`
	Database        DatabaseConfig        `koanf:"database"`
	Redis           RedisConfig           `koanf:"redis"`
	Logging         LoggingConfig         `koanf:"logging"`
	Metrics         MetricsConfig         `koanf:"metrics"`
	Batch           BatchConfig           `koanf:"batch"`
	Scoring         ScoringConfig         `koanf:"scoring"`
	Rules           []RuleConfig          `koanf:"rules"`
	Sections        []SectionConfig       `koanf:"sections"`
	Selection       SelectionConfig       `koanf:"selection"`
	Personalization PersonalizationConfig `koanf:"personalization"`
	Stats           StatsConfig           `koanf:"stats"`
}

type AppConfig struct {
	Name     string `koanf:"name" validate:"required"`
	Env      string `koanf:"env" validate:"required,oneof=development staging production"`
	CronSpec string `koanf:"cron_spec" validate:"required"`
}

type DatabaseConfig struct {
	Host                  string        `koanf:"host" validate:"required"`
	Port                  string        `koanf:"port" validate:"required"`
	Name                  string        `koanf:"name" validate:"required"`
	User                  string        `koanf:"user" validate:"required"`
	Password              string        `koanf:"password"`
	SSLMode               string        `koanf:"ssl_mode"`
	ConnectTimeout        time.Duration `koanf:"connect_timeout"`
	PoolMaxConns          int32         `koanf:"pool_max_conns"`
	PoolMinConns          int32         `koanf:"pool_min_conns"`
	PoolMaxConnLifetime   time.Duration `koanf:"pool_max_conn_lifetime"`
	PoolMaxConnIdleTime   time.Duration `koanf:"pool_max_conn_idle_time"`
	PoolHealthCheckPeriod time.Duration `koanf:"pool_health_check_period"`
}

type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type BatchConfig struct {
	Workers          int           `koanf:"workers" validate:"min=1"`
	BatchSize        int           `koanf:"batch_size" validate:"min=1"`
	QueueSize        int           `koanf:"queue_size" validate:"min=1"`
	CandidateLimit   int           `koanf:"candidate_limit" validate:"min=1"`
	TimeBudget       time.Duration `koanf:"time_budget" validate:"required"`
	UserDeadline     time.Duration `koanf:"user_deadline" validate:"required"`
	RefreshDeadline  time.Duration `koanf:"refresh_deadline" validate:"required"`
	MaxRetries       int           `koanf:"max_retries" validate:"min=0,max=5"`
	RetryBackoff     time.Duration `koanf:"retry_backoff"`
	FailureRateAbort float64       `koanf:"failure_rate_abort" validate:"gt=0,lte=1"`
}

// ScoringConfig carries the signal weights. The authoritative split is an
// operational decision, not a code constant: the three weights plus the
// bonus budget must sum to exactly 1.0 or the config is rejected.
type ScoringConfig struct {
	BasicWeight           float64 `koanf:"basic_weight" validate:"gte=0,lte=1"`
	RelevanceWeight       float64 `koanf:"relevance_weight" validate:"gte=0,lte=1"`
	PersonalizationWeight float64 `koanf:"personalization_weight" validate:"gte=0,lte=1"`
	BonusBudget           float64 `koanf:"bonus_budget" validate:"gte=0,lte=1"`

	WageWeight       float64 `koanf:"wage_weight" validate:"gte=0,lte=1"`
	FeeWeight        float64 `koanf:"fee_weight" validate:"gte=0,lte=1"`
	PopularityWeight float64 `koanf:"popularity_weight" validate:"gte=0,lte=1"`

	MinFee               float64  `koanf:"min_fee" validate:"gte=0"`
	FeeCeiling           float64  `koanf:"fee_ceiling" validate:"gt=0"`
	AcceptedCompensation []string `koanf:"accepted_compensation" validate:"min=1"`

	KeywordTopN int `koanf:"keyword_top_n" validate:"min=1,max=20"`
}

type RuleConfig struct {
	Name       string  `koanf:"name" validate:"required"`
	Kind       string  `koanf:"kind" validate:"required"`
	Adjustment float64 `koanf:"adjustment"`
	WithinDays int     `koanf:"within_days"`
}

type SectionConfig struct {
	Name       string `koanf:"name" validate:"required"`
	Kind       string `koanf:"kind" validate:"required,oneof=top regional nearby benefits fresh"`
	Quota      int    `koanf:"quota" validate:"min=1"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

type SelectionConfig struct {
	EmployerCap int                 `koanf:"employer_cap" validate:"min=1"`
	Adjacent    map[string][]string `koanf:"adjacent"`
}

type PersonalizationConfig struct {
	Factors          int           `koanf:"factors" validate:"min=2,max=512"`
	Iterations       int           `koanf:"iterations" validate:"min=1,max=200"`
	Regularization   float64       `koanf:"regularization" validate:"gt=0"`
	Alpha            float64       `koanf:"alpha" validate:"gt=0"`
	RetrainThreshold int           `koanf:"retrain_threshold" validate:"min=1"`
	TrainDeadline    time.Duration `koanf:"train_deadline" validate:"required"`
	ViewWeight       float64       `koanf:"view_weight" validate:"gt=0"`
	ClickWeight      float64       `koanf:"click_weight" validate:"gt=0"`
	FavoriteWeight   float64       `koanf:"favorite_weight" validate:"gt=0"`
	ApplyWeight      float64       `koanf:"apply_weight" validate:"gt=0"`
}

type StatsConfig struct {
	MinSampleCount    int     `koanf:"min_sample_count" validate:"min=1"`
	RetentionDays     int     `koanf:"retention_days" validate:"min=1"`
	NeutralPopularity float64 `koanf:"neutral_popularity" validate:"gte=0,lte=100"`
}

// Default returns the documented baseline configuration. The 25/20/40 weight
// split with a 15-point bonus budget is the shipped default; deployments
// override it in config.yaml.
func Default() Config {
	return Config{
		App: AppConfig{
			Name:     "job-digest",
			Env:      "development",
			CronSpec: "0 2 * * *",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			Name:           "jobdigest",
			User:           "jobdigest",
			SSLMode:        "disable",
			ConnectTimeout: 10 * time.Second,
			PoolMaxConns:   8,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: false, Addr: ":9090"},
		Batch: BatchConfig{
			Workers:          8,
			BatchSize:        100,
			QueueSize:        256,
			CandidateLimit:   2000,
			TimeBudget:       30 * time.Minute,
			UserDeadline:     15 * time.Second,
			RefreshDeadline:  5 * time.Minute,
			MaxRetries:       2,
			RetryBackoff:     500 * time.Millisecond,
			FailureRateAbort: 0.10,
		},
		Scoring: ScoringConfig{
			BasicWeight:           0.25,
			RelevanceWeight:       0.20,
			PersonalizationWeight: 0.40,
			BonusBudget:           0.15,
			WageWeight:            0.40,
			FeeWeight:             0.30,
			PopularityWeight:      0.30,
			MinFee:                500,
			FeeCeiling:            10000,
			AcceptedCompensation:  []string{"hourly", "daily", "monthly"},
			KeywordTopN:           7,
		},
		Rules: []RuleConfig{
			{Name: "perfect-category-match", Kind: "category_match", Adjustment: 15},
			{Name: "recent-application-same-employer", Kind: "recent_application", Adjustment: -20, WithinDays: 14},
		},
		Sections: []SectionConfig{
			{Name: "top", Kind: "top", Quota: 5},
			{Name: "regional", Kind: "regional", Quota: 10},
			{Name: "nearby", Kind: "nearby", Quota: 10},
			{Name: "benefits", Kind: "benefits", Quota: 10},
			{Name: "new", Kind: "fresh", Quota: 5, MaxAgeDays: 3},
		},
		Selection: SelectionConfig{EmployerCap: 5},
		Personalization: PersonalizationConfig{
			Factors:          32,
			Iterations:       15,
			Regularization:   0.01,
			Alpha:            40,
			RetrainThreshold: 1000,
			TrainDeadline:    10 * time.Minute,
			ViewWeight:       1,
			ClickWeight:      2,
			FavoriteWeight:   3,
			ApplyWeight:      5,
		},
		Stats: StatsConfig{
			MinSampleCount:    10,
			RetentionDays:     360,
			NeutralPopularity: 30,
		},
	}
}
