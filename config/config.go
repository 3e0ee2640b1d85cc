package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rentscout/models"
)

type Config struct {
	Store     StoreConfig
	Supabase  SupabaseConfig
	Postgres  PostgresConfig
	S3        S3Config
	Fetch     FetchConfig
	Viewport  ViewportConfig
	Scheduler SchedulerConfig
	Home      *models.Coordinate
	DBPath    string
	HTTPAddr  string
	Log       LogConfig
	Areas     map[string]*Area
}

type StoreConfig struct {
	Driver string
}

type SupabaseConfig struct {
	URL     string
	AnonKey string
	Table   string
}

type PostgresConfig struct {
	URL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, MinIO
	AccessKeyID     string
	SecretAccessKey string
	Key             string
}

type FetchConfig struct {
	MaxAttempts int
	Timeout     time.Duration
	RetryDelay  time.Duration
	PageSize    int
}

type ViewportConfig struct {
	Debounce          time.Duration
	ClusteringEnabled bool
	ClusterThreshold  int
	RefetchOnChange   bool
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type LogConfig struct {
	Level  string
	Format string
	Path   string
}

// Area is a named bounding box preset loaded from config/areas.
type Area struct {
	ID     string  `yaml:"id" json:"id"`
	Name   string  `yaml:"name" json:"name"`
	LatMin float64 `yaml:"lat_min" json:"latMin"`
	LatMax float64 `yaml:"lat_max" json:"latMax"`
	LngMin float64 `yaml:"lng_min" json:"lngMin"`
	LngMax float64 `yaml:"lng_max" json:"lngMax"`
}

func (a *Area) Bounds() models.MapBounds {
	return models.MapBounds{
		NorthEast: models.Coordinate{Lat: a.LatMax, Lng: a.LngMax},
		SouthWest: models.Coordinate{Lat: a.LatMin, Lng: a.LngMin},
	}
}

const areasDir = "config/areas"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "supabase"),
		},
		Supabase: SupabaseConfig{
			URL:     os.Getenv("SUPABASE_URL"),
			AnonKey: os.Getenv("SUPABASE_ANON_KEY"),
			Table:   getEnv("SUPABASE_TABLE", "listings"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Key:             getEnv("S3_KEY", "listings.json"),
		},
		Fetch: FetchConfig{
			MaxAttempts: getEnvInt("FETCH_MAX_ATTEMPTS", 3),
			Timeout:     getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
			RetryDelay:  getEnvDuration("FETCH_RETRY_DELAY", 500*time.Millisecond),
			PageSize:    getEnvInt("PAGE_SIZE", 10),
		},
		Viewport: ViewportConfig{
			Debounce:          getEnvDuration("VIEWPORT_DEBOUNCE", 300*time.Millisecond),
			ClusteringEnabled: getEnvBool("CLUSTERING_ENABLED", true),
			ClusterThreshold:  getEnvInt("CLUSTER_THRESHOLD", 50),
			RefetchOnChange:   getEnvBool("REFETCH_ON_VIEWPORT", false),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("REFRESH_CRON"),
			Interval: getEnvDuration("REFRESH_INTERVAL", 0),
		},
		Home:     homeCoordinate(),
		DBPath:   getEnv("DB_PATH", "rentscout.db"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			Path:   getEnv("LOG_PATH", "rentscout.log"),
		},
		Areas: make(map[string]*Area),
	}

	if err := cfg.loadAreas(areasDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AreaList returns the presets ordered by id.
func (c *Config) AreaList() []*Area {
	out := make([]*Area, 0, len(c.Areas))
	for _, a := range c.Areas {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Config) loadAreas(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var area Area
		if err := yaml.Unmarshal(data, &area); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if area.ID == "" {
			return fmt.Errorf("area %s: missing id", path)
		}
		if area.LatMin > area.LatMax || area.LngMin > area.LngMax {
			return fmt.Errorf("area %s: inverted bounds", area.ID)
		}

		c.Areas[area.ID] = &area
	}

	return nil
}

// homeCoordinate reads HOME_LAT/HOME_LNG. Nil unless both parse and are in range.
func homeCoordinate() *models.Coordinate {
	lat, errLat := strconv.ParseFloat(os.Getenv("HOME_LAT"), 64)
	lng, errLng := strconv.ParseFloat(os.Getenv("HOME_LNG"), 64)
	if errLat != nil || errLng != nil {
		return nil
	}
	c := models.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return nil
	}
	return &c
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
