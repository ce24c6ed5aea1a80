package config

import (
	"os"
	"strings"
)

// AppConfig 汇总运行核心所需的基础配置。
type AppConfig struct {
	DatabasePath string
	DemoUsername string
	DemoPassword string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "questlog.db"
	}

	demoUsername := strings.TrimSpace(os.Getenv("DEMO_USERNAME"))
	if demoUsername == "" {
		demoUsername = "demo"
	}

	demoPassword := strings.TrimSpace(os.Getenv("DEMO_PASSWORD"))
	if demoPassword == "" {
		demoPassword = "demo"
	}

	return AppConfig{
		DatabasePath: databasePath,
		DemoUsername: demoUsername,
		DemoPassword: demoPassword,
	}
}
