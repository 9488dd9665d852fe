package config

import (
	"log"

	"github.com/spf13/viper"
)

// Configuration carries everything the service needs at boot. Values come
// from config.yaml with env overrides (the WABOT_* keys from the
// deployment environment win over file values).
type Configuration struct {
	ApiPort string
	LogPath string

	Database string // "sqlite3" or "postgres"
	DbHost   string
	DbPort   string
	DbUser   string
	DbName   string
	DbPass   string

	Wabot WabotConfig
	OCR   OCRConfig
}

// WabotConfig is the provider-gateway configuration.
type WabotConfig struct {
	ApiURL          string
	ApiToken        string
	InstanceID      string
	DisableSend     bool
	EnableAutoreply bool
	LogMediaPayload bool
}

// OCRConfig holds the Vision credentials and the parser tuning knobs.
type OCRConfig struct {
	VisionApiKey      string
	VisionEndpoint    string
	StoreThreshold    float64
	LocationThreshold float64
	ProductThreshold  float64
	MaxProducts       int
	ItemBrand         string
}

// Dev fallback token, same role as the reference deployment's default.
const devApiToken = "dev-wabot-token"

// Load reads config.yaml (if present) and the environment.
func Load() Configuration {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.log_path", "logs/server.log")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("wabot.api_url", "https://app.wabot.my/api")
	v.SetDefault("wabot.api_token", devApiToken)
	v.SetDefault("ocr.vision_endpoint", "https://vision.googleapis.com/v1/images:annotate")
	v.SetDefault("ocr.store_threshold", 0.80)
	v.SetDefault("ocr.location_threshold", 0.85)
	v.SetDefault("ocr.product_threshold", 0.76)
	v.SetDefault("ocr.max_products", 3)
	v.SetDefault("ocr.item_brand", "KHIND")

	// Env keys recognized by the deployment environment.
	_ = v.BindEnv("wabot.api_token", "WABOT_API_TOKEN")
	_ = v.BindEnv("wabot.instance_id", "WABOT_INSTANCE_ID")
	_ = v.BindEnv("wabot.api_url", "WABOT_API_URL")
	_ = v.BindEnv("wabot.disable_send", "WABOT_DISABLE_SEND")
	_ = v.BindEnv("wabot.enable_autoreply", "WABOT_ENABLE_AUTOREPLY")
	_ = v.BindEnv("wabot.log_media_payload", "WABOT_LOG_MEDIA_PAYLOAD")
	_ = v.BindEnv("ocr.vision_api_key", "VISION_API_KEY")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.driver", "DATABASE")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.name", "DB_NAME")
	_ = v.BindEnv("database.pass", "DB_PASS")

	if err := v.ReadInConfig(); err != nil {
		log.Println("config: no config file found, using defaults + env")
	}

	return Configuration{
		ApiPort:  v.GetString("server.port"),
		LogPath:  v.GetString("server.log_path"),
		Database: v.GetString("database.driver"),
		DbHost:   v.GetString("database.host"),
		DbPort:   v.GetString("database.port"),
		DbUser:   v.GetString("database.user"),
		DbName:   v.GetString("database.name"),
		DbPass:   v.GetString("database.pass"),
		Wabot: WabotConfig{
			ApiURL:          v.GetString("wabot.api_url"),
			ApiToken:        v.GetString("wabot.api_token"),
			InstanceID:      v.GetString("wabot.instance_id"),
			DisableSend:     v.GetBool("wabot.disable_send"),
			EnableAutoreply: v.GetBool("wabot.enable_autoreply"),
			LogMediaPayload: v.GetBool("wabot.log_media_payload"),
		},
		OCR: OCRConfig{
			VisionApiKey:      v.GetString("ocr.vision_api_key"),
			VisionEndpoint:    v.GetString("ocr.vision_endpoint"),
			StoreThreshold:    v.GetFloat64("ocr.store_threshold"),
			LocationThreshold: v.GetFloat64("ocr.location_threshold"),
			ProductThreshold:  v.GetFloat64("ocr.product_threshold"),
			MaxProducts:       v.GetInt("ocr.max_products"),
			ItemBrand:         v.GetString("ocr.item_brand"),
		},
	}
}
