// 将历史文件中的问答导入数据库
//
// 正常运行时问答会在 simulator.mirror_to_database 打开后实时写入数据库。
// 此脚本用于补录开启镜像之前已经写入历史文件的记录。
//
// 用法: go run scripts/replay_history.go -file history/chat_history.txt [-session 名称] [-dry-run]

package main

import (
	"context"
	"flag"
	"kmms_simulator/internal/config"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/repository"
	"kmms_simulator/internal/service"
	"kmms_simulator/pkg/database"
	"kmms_simulator/pkg/logger"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func main() {
	file := flag.String("file", "", "历史文件路径")
	session := flag.String("session", "", "写入记录的会话标识，默认 replay:<文件名>")
	dryRun := flag.Bool("dry-run", false, "只解析不写入")
	flag.Parse()

	if *file == "" {
		log.Fatal("必须指定 -file")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("无法打开历史文件: %v", err)
	}
	defer f.Close()

	exchanges, err := service.ParseHistory(f)
	if err != nil {
		log.Fatalf("解析历史文件失败: %v", err)
	}
	log.Printf("共解析 %d 条问答", len(exchanges))

	if *dryRun {
		for i, e := range exchanges {
			log.Printf("%d. [%s] %s", i+1, e.ContextLabel, e.Question)
		}
		return
	}

	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = "replay:" + filepath.Base(*file)
	}

	repo := repository.NewExchangeRepository(db)
	ctx := context.Background()
	for _, e := range exchanges {
		rec := &model.ExchangeRecord{
			SessionID:    sessionID,
			Question:     e.Question,
			Answer:       e.Answer,
			ContextLabel: e.ContextLabel,
			HistoryFile:  filepath.Base(*file),
		}
		if err := repo.Record(ctx, rec); err != nil {
			log.Fatalf("写入失败: %v", err)
		}
	}
	log.Println("完成！")
}
