package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/edquest/proctor-backend/internal/config"
	"github.com/edquest/proctor-backend/internal/database"
	"github.com/edquest/proctor-backend/internal/logger"
	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/repository"
)

const demoPassword = "proctor-demo"

var demoQuestions = []model.Question{
	{QuestionText: "What is the SI unit of force?", Options: []string{"Joule", "Newton", "Watt", "Pascal"}, CorrectAnswer: "Newton", Points: 1},
	{QuestionText: "Which planet is closest to the Sun?", Options: []string{"Venus", "Earth", "Mercury", "Mars"}, CorrectAnswer: "Mercury", Points: 1},
	{QuestionText: "What is 12 × 12?", Options: []string{"124", "144", "132", "156"}, CorrectAnswer: "144", Points: 1},
	{QuestionText: "Which gas do plants absorb for photosynthesis?", Options: []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}, CorrectAnswer: "Carbon dioxide", Points: 2},
	{QuestionText: "Who wrote 'Romeo and Juliet'?", Options: []string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"}, CorrectAnswer: "William Shakespeare", Points: 1},
}

func main() {
	var students int
	flag.IntVar(&students, "students", 10, "Number of demo students to create")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	testRepo := repository.NewTestRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	fmt.Println("=== Seeding demo exam ===")

	test := &model.Test{
		Title:           "General Knowledge Demo",
		Description:     "Sample exam for trying the proctoring flow.",
		DurationMinutes: 30,
	}
	questions := append([]model.Question(nil), demoQuestions...)
	if err := testRepo.Create(ctx, test, questions); err != nil {
		log.Fatal().Err(err).Msg("Failed to create demo test")
	}
	fmt.Printf("Created test %q with %d questions (ID: %s)\n", test.Title, len(questions), test.ID)

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	created := 0
	for i := 1; i <= students; i++ {
		user := &model.User{
			Email:        fmt.Sprintf("student%02d@demo.test", i),
			Name:         fmt.Sprintf("Demo Student %02d", i),
			PasswordHash: string(hash),
			Role:         model.RoleStudent,
		}
		if err := userRepo.Upsert(ctx, user); err != nil {
			fmt.Printf("Error creating %s: %v\n", user.Email, err)
			continue
		}
		created++
	}

	fmt.Printf("\nSeed completed! %d/%d students ready, password %q.\n", created, students, demoPassword)
}
