package controllers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cppla/blogfeed/config"
	"github.com/cppla/blogfeed/middleware"
	"github.com/cppla/blogfeed/models"
	"github.com/cppla/blogfeed/repository"
	"github.com/cppla/blogfeed/utils"
)

// UploadURLPrefix is where the router serves the uploads directory.
const UploadURLPrefix = "/static/uploads"

var imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// sniffLen is how much of an upload is read to detect its type.
const sniffLen = 3072

// UploadController stores post images until a post attaches them.
type UploadController struct {
	uploads *repository.UploadRepository
	cfg     config.AppConfig
	now     func() time.Time
}

// NewUploadController creates an UploadController writing under cfg.UploadsDir.
func NewUploadController(uploads *repository.UploadRepository, cfg config.AppConfig) *UploadController {
	return &UploadController{uploads: uploads, cfg: cfg, now: time.Now}
}

// Upload accepts a multipart "file" image and returns the URL to put in a post's image field.
func (u *UploadController) Upload(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		middleware.RedirectToLogin(ctx)
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Respond(ctx, http.StatusBadRequest, 40030, "no file uploaded", gin.H{"field": "image"})
		return
	}
	defer file.Close()

	maxSize := int64(u.cfg.UploadsMaxMB) << 20
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	if header.Size > maxSize {
		utils.Respond(ctx, http.StatusBadRequest, 40032, fmt.Sprintf("file size exceeds %dMB", maxSize>>20), gin.H{"field": "image"})
		return
	}

	sniff := make([]byte, sniffLen)
	n, _ := io.ReadFull(file, sniff)
	mtype := mimetype.Detect(sniff[:n])
	if !mimetype.EqualsAny(mtype.String(), imageTypes...) {
		utils.Respond(ctx, http.StatusBadRequest, 40031, "only jpeg, png, gif or webp images are accepted", gin.H{"field": "image"})
		return
	}

	now := u.now()
	datePath := now.Format("2006/01/02")
	dir := filepath.Join(u.cfg.UploadsDir, filepath.FromSlash(datePath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create upload directory")
		return
	}
	name := uuid.NewString() + mtype.Extension()
	dst := filepath.Join(dir, name)

	written, err := u.save(dst, io.MultiReader(bytes.NewReader(sniff[:n]), file), maxSize)
	if err != nil {
		_ = os.Remove(dst)
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to write file")
		return
	}
	if written > maxSize {
		_ = os.Remove(dst)
		utils.Respond(ctx, http.StatusBadRequest, 40032, fmt.Sprintf("file size exceeds %dMB", maxSize>>20), gin.H{"field": "image"})
		return
	}

	ttl := u.cfg.UploadsTTLMinutes
	if ttl <= 0 {
		ttl = 60
	}
	abs, _ := filepath.Abs(dst)
	record := &models.UploadedFile{
		UserID:   user.ID,
		FilePath: abs,
		URL:      path.Join(UploadURLPrefix, datePath, name),
		ExpireAt: now.Add(time.Duration(ttl) * time.Minute),
	}
	if err := u.uploads.Record(ctx.Request.Context(), record); err != nil {
		_ = os.Remove(dst)
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"url": record.URL, "expire_at": record.ExpireAt})
}

func (u *UploadController) save(dst string, r io.Reader, maxSize int64) (int64, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(out, &io.LimitedReader{R: r, N: maxSize + 1})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return written, err
}
