package main

import (
	"context"
	"log"
	"net/http"

	"civiclens-be/config"
	"civiclens-be/controllers"
	"civiclens-be/engine"
	"civiclens-be/routes"
	"civiclens-be/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	db := config.ConnectDB()
	if db == nil {
		log.Fatal("Failed to connect to MongoDB")
	}
	log.Println("MongoDB connection established successfully!")

	config.ConnectRedis()

	issueStore := store.NewMongoStore(db.Collection("issues"))
	if err := issueStore.EnsureIndexes(context.Background()); err != nil {
		log.Printf("Failed to ensure issue indexes: %v", err)
	}

	cfg := config.EngineFromEnv()
	router := engine.NewDepartmentRouter(cfg.Departments)
	controllers.Engine = engine.NewService(issueStore, cfg.Quorum, router)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
	}))

	routes.AuthRoutes(r)
	routes.IssueRoutes(r)
	routes.DepartmentRoutes(r)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
