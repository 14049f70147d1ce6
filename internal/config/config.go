package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the asset vault.
type Config struct {
	Port         string
	ServiceToken string

	// MaxFileBytes is the policy ceiling from spec.md §6: "2 GiB in the
	// current revision" (earlier revisions used 4 GiB or 10 GiB).
	MaxFileBytes uint64

	// MaxResponseBytes is the per-response payload budget of the host
	// environment (spec.md §4.3/§6), "≈2 MiB in the target deployment".
	MaxResponseBytes uint64

	HeaderNameMax  int
	HeaderValueMax int

	// TrustDeclaredHash enables spec.md §4.2's fast-path dedup: a chunk
	// request declaring a digest already present in the store is bound
	// without accumulating bytes.
	TrustDeclaredHash bool

	// StoredHeadersOverrideControl resolves spec.md §9's open question about
	// header application order. Default false: computed control headers
	// (Content-Disposition, ETag, Content-Range) always win over a stored
	// header of the same name.
	StoredHeadersOverrideControl bool

	MaxConcurrentUploads int

	// UploadSessionTTL bounds how long an abandoned in-progress upload
	// (UploadingFile with no matching new chunk or explicit delete) survives
	// before internal/cleanup reclaims it.
	UploadSessionTTL time.Duration

	SnapshotPath     string
	SnapshotInterval time.Duration
}

// Load reads configuration from the environment, falling back to
// production-sane defaults when a variable is unset.
func Load() *Config {
	return &Config{
		Port:                         getEnv("VAULT_PORT", "5000"),
		ServiceToken:                 getEnv("VAULT_SERVICE_TOKEN", ""),
		MaxFileBytes:                 getEnvUint("VAULT_MAX_FILE_BYTES", 2<<30),     // 2 GiB
		MaxResponseBytes:             getEnvUint("VAULT_MAX_RESPONSE_BYTES", 2<<20), // 2 MiB
		HeaderNameMax:                int(getEnvUint("VAULT_HEADER_NAME_MAX", 64)),
		HeaderValueMax:               int(getEnvUint("VAULT_HEADER_VALUE_MAX", 8192)),
		TrustDeclaredHash:            getEnvBool("VAULT_TRUST_DECLARED_HASH", false),
		StoredHeadersOverrideControl: getEnvBool("VAULT_STORED_HEADERS_OVERRIDE_CONTROL", false),
		MaxConcurrentUploads:         int(getEnvUint("VAULT_MAX_CONCURRENT_UPLOADS", 256)),
		UploadSessionTTL:             getEnvDuration("VAULT_UPLOAD_SESSION_TTL", 24*time.Hour),
		SnapshotPath:                 getEnv("VAULT_SNAPSHOT_PATH", "/data/vault.snapshot"),
		SnapshotInterval:             getEnvDuration("VAULT_SNAPSHOT_INTERVAL", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
