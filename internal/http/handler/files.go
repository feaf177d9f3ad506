package handler

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"clinicfiles/internal/http/middleware"
	"clinicfiles/internal/model"
	"clinicfiles/internal/service"
)

// HealthCheck reports whether the metadata database is reachable.
//
//	@Summary	Readiness check
//	@Tags		ops
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	errorPayload
//	@Router		/health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// Liveness always answers 200 while the process serves requests.
func Liveness() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parsePage reads limit and offset, naming the first malformed parameter.
func parsePage(c *fiber.Ctx) (limit, offset int, bad string) {
	var err error
	if limit, err = strconv.Atoi(c.Query("limit", "10")); err != nil {
		return 0, 0, "limit"
	}
	if offset, err = strconv.Atoi(c.Query("offset", "0")); err != nil {
		return 0, 0, "offset"
	}
	return limit, offset, ""
}

func writePageError(c *fiber.Ctx, bad string) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_"+strings.ToUpper(bad), "invalid "+bad)
}

// ListFiles returns a page of files filtered by owner, category and state.
//
//	@Summary	List files
//	@Tags		files
//	@Param		owner_id	query		string	false	"owner filter"
//	@Param		category	query		string	false	"category filter"
//	@Param		state		query		string	false	"Active or InRecycleBin"
//	@Param		limit		query		int		false	"page size"	default(10)
//	@Param		offset		query		int		false	"page offset"	default(0)
//	@Success	200			{object}	service.FileListResult
//	@Failure	400			{object}	errorPayload
//	@Router		/files [get]
func ListFiles(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, bad := parsePage(c)
		if bad != "" {
			return writePageError(c, bad)
		}
		res, err := svc.List(c.UserContext(), service.ListQuery{
			OwnerID:  c.Query("owner_id"),
			Category: c.Query("category"),
			State:    model.LifecycleState(c.Query("state")),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadFile stores a new file (multipart/form-data: file, owner_id, category).
//
//	@Summary	Upload a file
//	@Tags		files
//	@Accept		multipart/form-data
//	@Param		file		formData	file	true	"payload"
//	@Param		owner_id	formData	string	true	"subject the file belongs to"
//	@Param		category	formData	string	true	"document category"
//	@Success	201			{object}	model.FileRecord
//	@Failure	400			{object}	errorPayload
//	@Failure	401			{object}	errorPayload
//	@Failure	502			{object}	errorPayload
//	@Router		/files [post]
func UploadFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := middleware.ActorFrom(c)
		if actor == "" {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		rec, err := svc.Upload(c.UserContext(), service.UploadInput{
			OwnerID:      c.FormValue("owner_id"),
			Category:     c.FormValue("category"),
			Actor:        actor,
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Content:      f,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	}
}

// GetFile returns the metadata of one file.
//
//	@Summary	Get a file
//	@Tags		files
//	@Param		id	path		int	true	"file id"
//	@Success	200	{object}	model.FileRecord
//	@Failure	404	{object}	errorPayload
//	@Router		/files/{id} [get]
func GetFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		rec, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(rec)
	}
}

// DownloadFile streams the current blob of a file.
//
//	@Summary	Download file content
//	@Tags		files
//	@Produce	octet-stream
//	@Param		id	path	int	true	"file id"
//	@Success	200
//	@Failure	404	{object}	errorPayload
//	@Failure	502	{object}	errorPayload
//	@Router		/files/{id}/content [get]
func DownloadFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		rc, rec, err := svc.Open(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Attachment(rec.FileName)
		c.Set(fiber.HeaderContentType, rec.ContentType)
		// fasthttp closes rc once the body is written.
		return c.SendStream(rc)
	}
}

// ReplaceFile uploads a new version of an Active file.
//
//	@Summary	Replace file content
//	@Tags		files
//	@Accept		multipart/form-data
//	@Param		id		path		int		true	"file id"
//	@Param		file	formData	file	true	"new payload"
//	@Success	200		{object}	model.FileRecord
//	@Failure	409		{object}	errorPayload
//	@Router		/files/{id} [put]
func ReplaceFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		actor := middleware.ActorFrom(c)
		if actor == "" {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		rec, err := svc.Replace(c.UserContext(), id, service.ReplaceInput{
			Actor:        actor,
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Content:      f,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(rec)
	}
}

type transitionFunc func(ctx context.Context, id int64, actor string) (*model.FileRecord, error)

func transition(fn transitionFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		actor := middleware.ActorFrom(c)
		if actor == "" {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
		rec, err := fn(c.UserContext(), id, actor)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(rec)
	}
}

// DeleteFile moves an Active file into the recycle bin.
//
//	@Summary	Move a file to the recycle bin
//	@Tags		files
//	@Param		id	path		int	true	"file id"
//	@Success	200	{object}	model.FileRecord
//	@Failure	409	{object}	errorPayload
//	@Router		/files/{id} [delete]
func DeleteFile(svc service.FileService) fiber.Handler {
	return transition(svc.SoftDelete)
}

// RestoreFile brings a file back from the recycle bin.
//
//	@Summary	Restore a file
//	@Tags		recycle-bin
//	@Param		id	path		int	true	"file id"
//	@Success	200	{object}	model.FileRecord
//	@Failure	409	{object}	errorPayload
//	@Router		/files/{id}/restore [post]
func RestoreFile(svc service.FileService) fiber.Handler {
	return transition(svc.Restore)
}

// FileHistory returns the audit trail of a file, also after it was purged.
//
//	@Summary	File history
//	@Tags		files
//	@Param		id	path	int	true	"file id"
//	@Success	200	{array}	model.HistoryEntry
//	@Failure	404	{object}	errorPayload
//	@Router		/files/{id}/history [get]
func FileHistory(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		entries, err := svc.History(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(entries)
	}
}

// ListRecycleBin returns a page of the recycle-bin index.
//
//	@Summary	List the recycle bin
//	@Tags		recycle-bin
//	@Param		limit	query		int	false	"page size"	default(10)
//	@Param		offset	query		int	false	"page offset"	default(0)
//	@Success	200		{object}	service.RecycleBinResult
//	@Router		/recycle-bin [get]
func ListRecycleBin(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, bad := parsePage(c)
		if bad != "" {
			return writePageError(c, bad)
		}
		res, err := svc.RecycleBin(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// PurgeFile permanently deletes a file from the recycle bin.
//
//	@Summary	Purge a file
//	@Tags		recycle-bin
//	@Param		id	path	int	true	"file id"
//	@Success	204
//	@Failure	409	{object}	errorPayload
//	@Router		/recycle-bin/{id} [delete]
func PurgeFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		actor := middleware.ActorFrom(c)
		if actor == "" {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
		if err := svc.Purge(c.UserContext(), id, actor); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
