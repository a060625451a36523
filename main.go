// @title KMMS AI Simulator API
// @version 1.0
// @description 虚拟病人问诊模拟、提案评审与院校对比的后端服务。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey SessionToken
// @in header
// @name Authorization

package main

import (
	"flag"
	"kmms_simulator/internal/app"
	"kmms_simulator/internal/config"
	"kmms_simulator/pkg/configwatcher"
	"kmms_simulator/pkg/logger"
	"log"
	"path/filepath"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置文件所在目录")
	watch := flag.Bool("watch", true, "监听配置文件变更并热更新")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	application := app.NewApp(cfg)

	if *watch {
		stop := make(chan struct{})
		defer close(stop)
		go configwatcher.WatchConfig(filepath.Join(*configDir, "config.yaml"), application.ApplyConfig, stop)
	}

	application.Run()
}
