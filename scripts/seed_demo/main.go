package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/questlog/internal/config"
	"github.com/questlog/internal/db"
	"github.com/questlog/internal/service"
)

// 演示数据生成器：一个账号、一个角色和一组示例任务。
func main() {
	cfg := config.Load()
	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	accounts := service.NewAccountService(gdb)
	characters := service.NewCharacterService(gdb)
	plans := service.NewPlanService(gdb)
	sessions := service.NewSessionService(gdb)

	account, err := accounts.Register(cfg.DemoUsername, cfg.DemoPassword)
	if err != nil {
		if !errors.Is(err, service.ErrUsernameExists) {
			log.Fatal("创建演示账号失败:", err)
		}
		fmt.Println("演示账号已存在，无需生成")
		return
	}

	character, err := characters.Create(account.ID, "Cliff")
	if err != nil {
		log.Fatal("创建演示角色失败:", err)
	}

	plan, err := plans.CreatePlan(character.ID, "每日習慣", db.ResetRuleDaily, "")
	if err != nil {
		log.Fatal("创建演示计划失败:", err)
	}

	seeds := []service.TaskInput{
		{
			Name: "早睡",
			Reward: db.Reward{
				Type:        db.RewardTypeAttr,
				AttributeID: db.DefaultAttributeID(character.ID, "vit"),
				Amount:      1,
			},
		},
		{
			Name:   "30 分鐘閱讀",
			Reward: db.Reward{Type: db.RewardTypeMoney, Amount: 10},
		},
		{
			Name:   "打坐 20 分鐘",
			Reward: db.Reward{Type: db.RewardTypeToken, Amount: 1},
		},
	}
	for _, seed := range seeds {
		if _, err := plans.CreateTask(character.ID, plan.ID, seed); err != nil {
			log.Fatal("创建演示任务失败:", err)
		}
	}

	if err := sessions.SetCurrentAccount(account.ID); err != nil {
		log.Fatal("初始化会话失败:", err)
	}

	fmt.Println("演示数据生成完成！")
	fmt.Printf("账号: %s (密码: %s)\n", cfg.DemoUsername, cfg.DemoPassword)
	fmt.Println("角色: Cliff，计划: 每日習慣（3 个任务）")
}
