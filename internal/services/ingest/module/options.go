package module

import (
	"time"

	"awardarchive/internal/adapters/tablestore/delta"
	"awardarchive/internal/platform/config"
)

// Options holds configuration for the ingest pipelines and their table store
type Options struct {
	// seats.aero partner API
	SeatsAPIKey       string
	SeatsBaseURL      string
	SeatsRateInterval time.Duration

	// iPrefer scraping
	IPreferSiteURL      string
	IPreferCalendarURL  string
	IPreferRateInterval time.Duration

	// shared HTTP client knobs
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryBase   time.Duration

	// table store backend: fs or s3
	StoreBackend string
	DataDir      string
	S3           delta.S3Config
	Retention    time.Duration

	// pipeline tuning
	PageSize        int
	MaxMergeRetries int
	MergeRetryBase  time.Duration
}

// FromConfig reads the ingest options from config with CORE_INGEST_ prefix
func FromConfig(cfg config.Conf) Options {
	in := cfg.Prefix("CORE_INGEST_")
	return Options{
		SeatsAPIKey:       in.MayString("SEATS_API_KEY", ""),
		SeatsBaseURL:      in.MayString("SEATS_BASE_URL", ""),
		SeatsRateInterval: in.MayDuration("SEATS_RATE_INTERVAL", time.Second),

		IPreferSiteURL:      in.MayString("IPREFER_SITE_URL", ""),
		IPreferCalendarURL:  in.MayString("IPREFER_CALENDAR_URL", ""),
		IPreferRateInterval: in.MayDuration("IPREFER_RATE_INTERVAL", 500*time.Millisecond),

		HTTPTimeout: in.MayDuration("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:  in.MayInt("RETRIES", 5),
		RetryBase:   in.MayDuration("RETRY_BASE", 500*time.Millisecond),

		StoreBackend: in.MayEnum("STORE", "fs", "fs", "s3"),
		DataDir:      in.MayString("DATA_DIR", "./data"),
		S3: delta.S3Config{
			Endpoint:  in.MayString("S3_ENDPOINT", ""),
			AccessKey: in.MayString("S3_ACCESS_KEY", ""),
			SecretKey: in.MayString("S3_SECRET_KEY", ""),
			Bucket:    in.MayString("S3_BUCKET", "award-archive"),
			Region:    in.MayString("S3_REGION", ""),
			Prefix:    in.MayString("S3_PREFIX", ""),
			Secure:    in.MayBool("S3_SECURE", true),
		},
		Retention: in.MayDuration("RETENTION", 7*24*time.Hour),

		PageSize:        in.MayInt("PAGE_SIZE", 5000),
		MaxMergeRetries: in.MayInt("MERGE_RETRIES", 5),
		MergeRetryBase:  in.MayDuration("MERGE_RETRY_BASE", 2*time.Second),
	}
}
