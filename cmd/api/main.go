// @title                       Task Manager API
// @version                     1.0
// @description                 Multi-user to-do list service with JWT authentication.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	_ "github.com/taskmanager/task-api/docs"
	"github.com/taskmanager/task-api/internal/app"
	"github.com/taskmanager/task-api/internal/pkg/config"
	"github.com/taskmanager/task-api/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "task-api",
	})

	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}

	if _, err := a.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"task-api": a.Shutdown,
	})

	exitCode := <-wait
	log.Info().Int("exit_code", exitCode).Msg("shutdown complete")
	os.Exit(exitCode)
}
