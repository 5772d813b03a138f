package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type BotConfig struct {
	TelegramToken     string
	DatabaseURL       string
	SchedulerInterval time.Duration

	// Chat-platform role references granted while on shift / on leave.
	// Empty disables the grant.
	OnShiftRole string
	OnLeaveRole string

	// AdminChatIDs hold the privileged callers.
	AdminChatIDs []int64
}

var instance *BotConfig
var once sync.Once

func GetBotConfig() *BotConfig {
	once.Do(func() {
		instance = &BotConfig{}

		if err := godotenv.Load(); err != nil {
			logrus.Warnf("no env file loaded: %s", err.Error())
		}

		instance.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
		if instance.TelegramToken == "" {
			logrus.Fatal("could not get bot token")
		}

		instance.DatabaseURL = getEnv("DATABASE_URL", "./data.sqlite")

		minutes := getEnvAsInt("SCHEDULER_INTERVAL_MINUTES", 5)
		if minutes <= 0 {
			minutes = 5
		}
		instance.SchedulerInterval = time.Duration(minutes) * time.Minute

		instance.OnShiftRole = getEnv("ON_SHIFT_ROLE", "")
		instance.OnLeaveRole = getEnv("ON_LEAVE_ROLE", "")

		for _, raw := range strings.Split(getEnv("ADMIN_CHAT_IDS", ""), ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				logrus.Fatalf("bad admin chat id %q", raw)
			}
			instance.AdminChatIDs = append(instance.AdminChatIDs, id)
		}
	})

	return instance
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int64) int64 {
	valStr := getEnv(name, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return int64(val)
	}

	return defaultVal
}
