package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"clinicfiles/internal/config"
	"clinicfiles/internal/http/middleware"
	"clinicfiles/internal/service"
)

// RegisterRoutes attaches the ops health checks and the file lifecycle routes.
// File routes run behind the session middleware, which resolves the acting user.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.FileService, auth config.AuthConfig) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", Liveness())

	session := middleware.Session(auth)

	files := app.Group("/files", session)
	files.Get("/", ListFiles(svc))
	files.Post("/", UploadFile(svc))
	files.Get("/:id", GetFile(svc))
	files.Put("/:id", ReplaceFile(svc))
	files.Delete("/:id", DeleteFile(svc))
	files.Get("/:id/content", DownloadFile(svc))
	files.Get("/:id/history", FileHistory(svc))
	files.Post("/:id/restore", RestoreFile(svc))

	bin := app.Group("/recycle-bin", session)
	bin.Get("/", ListRecycleBin(svc))
	bin.Delete("/:id", PurgeFile(svc))
}
