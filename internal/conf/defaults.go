// conf/defaults.go default values for settings
package conf

import (
	_ "embed"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var defaultConfig []byte

func defaultConfigYAML() []byte {
	return defaultConfig
}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "CamGuard")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "camguard.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("ffmpegpath", "ffmpeg")
	viper.SetDefault("transport", "tcp")

	viper.SetDefault("recording.width", 640)
	viper.SetDefault("recording.height", 480)
	viper.SetDefault("recording.fps", 15)
	viper.SetDefault("recording.type", "mp4")

	viper.SetDefault("storage.path", "recordings/")
	viper.SetDefault("storage.limitbytes", 0)
	viper.SetDefault("storage.action", QuotaActionStop)

	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.intervalsec", 30)

	viper.SetDefault("cameras", []map[string]any{})

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "camguard/events")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "localhost:8090")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "events.db")
}
