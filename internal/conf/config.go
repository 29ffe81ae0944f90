// config.go: settings struct for the camguard application and functions to
// load, access and save the settings.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DaySchedule is a single weekday's recording window. Start and End are
// "HH:MM" wall-clock times; the window is half-open [Start, End) and never
// crosses midnight.
type DaySchedule struct {
	Enabled bool   `yaml:"enabled"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
}

// MotionSettings contains per-camera motion detection settings.
type MotionSettings struct {
	Enabled     bool         `yaml:"enabled"`
	Sensitivity int          `yaml:"sensitivity"` // changed-pixel count above which motion is reported
	CooldownSec int          `yaml:"cooldownsec"` // minimum seconds between motion started events, doubles as post-motion record time
	ROI         *ROISettings `yaml:"roi"`         // optional region of interest, nil analyzes the whole frame
}

// ROISettings restricts motion analysis to a sub-rectangle of the frame,
// expressed as fractions of the frame width and height.
type ROISettings struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// IsValid reports whether the region has positive area and lies within the
// unit square.
func (r *ROISettings) IsValid() bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= 1 && r.Y+r.Height <= 1
}

// CameraConfig describes one network camera. It is read-only to the
// pipeline; edits require a worker restart.
type CameraConfig struct {
	ID            string                 `yaml:"id"`
	Name          string                 `yaml:"name"`
	RTSPURL       string                 `yaml:"rtspurl"`
	Username      string                 `yaml:"username"`
	Password      string                 `yaml:"password"`
	IsActive      bool                   `yaml:"isactive"`
	Width         int                    `yaml:"width"`
	Height        int                    `yaml:"height"`
	FPS           int                    `yaml:"fps"`
	Motion        MotionSettings         `yaml:"motion"`
	Schedule      map[string]DaySchedule `yaml:"schedule"` // keyed by lowercase weekday name
	StoragePath   string                 `yaml:"storagepath"` // overrides <recordings root>/<camera name>
}

// ScheduleFor returns the schedule entry for the given weekday, or a
// disabled entry when none is configured.
func (c *CameraConfig) ScheduleFor(weekday string) DaySchedule {
	if c.Schedule == nil {
		return DaySchedule{}
	}
	return c.Schedule[strings.ToLower(weekday)]
}

// Storage quota actions.
const (
	QuotaActionStop            = "stop"
	QuotaActionOverwriteOldest = "overwrite-oldest"
)

// StorageSettings contains the recordings root and quota policy.
type StorageSettings struct {
	Path       string `yaml:"path"`       // recordings root directory
	LimitBytes int64  `yaml:"limitbytes"` // 0 = unlimited
	Action     string `yaml:"action"`     // "stop" or "overwrite-oldest"
}

// RecordingSettings contains defaults for recording output.
type RecordingSettings struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
	Type   string `yaml:"type"` // container type, mp4 only for now
}

// SchedulerSettings contains the schedule evaluator settings.
type SchedulerSettings struct {
	Enabled     bool `yaml:"enabled"`
	IntervalSec int  `yaml:"intervalsec"` // evaluation tick, 30 s granularity is enough for minute schedules
}

// MQTTSettings contains settings for the optional alert publisher.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // e.g. tcp://localhost:1883
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Retain   bool   `yaml:"retain"`
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // host:port
}

// LogSettings contains file log settings.
type LogSettings struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"maxsizemb"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAgeDays int    `yaml:"maxagedays"`
}

// SQLiteSettings contains the event catalog database settings.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Settings is the root configuration struct.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name string      `yaml:"name"`
		Log  LogSettings `yaml:"log"`
	} `yaml:"main"`

	FFmpegPath string `yaml:"ffmpegpath"` // path to ffmpeg binary
	Transport  string `yaml:"transport"`  // rtsp transport, tcp or udp

	Recording RecordingSettings `yaml:"recording"`
	Storage   StorageSettings   `yaml:"storage"`
	Scheduler SchedulerSettings `yaml:"scheduler"`

	Cameras []CameraConfig `yaml:"cameras"`

	MQTT      MQTTSettings      `yaml:"mqtt"`
	Telemetry TelemetrySettings `yaml:"telemetry"`

	Output struct {
		SQLite SQLiteSettings `yaml:"sqlite"`
	} `yaml:"output"`
}

// CameraByID returns the camera with the given id, or nil.
func (s *Settings) CameraByID(id string) *CameraConfig {
	for i := range s.Cameras {
		if s.Cameras[i].ID == id {
			return &s.Cameras[i]
		}
	}
	return nil
}

// ActiveCameras returns the cameras marked active.
func (s *Settings) ActiveCameras() []CameraConfig {
	var active []CameraConfig
	for i := range s.Cameras {
		if s.Cameras[i].IsActive {
			active = append(active, s.Cameras[i])
		}
	}
	return active
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and installs it as the package singleton.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create one from defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first
// default config path and re-reads it.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfigYAML(), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Printf("Created default config file at %s", configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SetSettings installs a settings instance directly. Intended for tests.
func SetSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
	once.Do(func() {})
}

// SaveYAMLConfig writes the settings to configPath as YAML. The write is
// atomic: a temp file in the same directory is renamed over the target.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
