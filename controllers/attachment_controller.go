package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/services"
	"github.com/moadong/moabbs/utils"
)

// AttachmentController exposes the upload pipeline over multipart HTTP.
type AttachmentController struct {
	attachments *services.AttachmentService
}

// NewAttachmentController creates a new AttachmentController instance.
func NewAttachmentController(attachments *services.AttachmentService) *AttachmentController {
	return &AttachmentController{attachments: attachments}
}

// Upload stores one multipart file. Optional form fields: attachable_type,
// attachable_id, is_private, convert_webp.
func (a *AttachmentController) Upload(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		file, header, err = ctx.Request.FormFile("f")
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
			return
		}
	}
	defer file.Close()

	attachableType := strings.TrimSpace(ctx.PostForm("attachable_type"))
	switch attachableType {
	case "", models.AttachableTypePost, models.AttachableTypeComment:
	default:
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid attachable type")
		return
	}
	attachableID, _ := strconv.ParseUint(ctx.PostForm("attachable_id"), 10, 64)

	in := services.UploadInput{
		Reader:         file,
		OriginalName:   header.Filename,
		AttachableType: attachableType,
		AttachableID:   uint(attachableID),
		UserID:         userID,
		IP:             ctx.ClientIP(),
		Options: services.UploadOptions{
			IsPrivate:     ctx.PostForm("is_private") == "true",
			ConvertToWebP: ctx.PostForm("convert_webp") == "true",
		},
	}

	att, err := a.attachments.Upload(ctx.Request.Context(), in)
	if err != nil {
		respondServiceError(ctx, err, 50032, "failed to store file")
		return
	}

	utils.Success(ctx, gin.H{
		"attachment": att,
		"url":        a.attachments.URL(att.FilePath),
	})
}

// Delete removes the caller's attachment.
func (a *AttachmentController) Delete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid attachment id")
		return
	}

	if err := a.attachments.Delete(ctx.Request.Context(), id, userID, isAdmin(ctx)); err != nil {
		respondServiceError(ctx, err, 50033, "failed to delete attachment")
		return
	}
	utils.Success(ctx, gin.H{"message": "attachment deleted"})
}

// ListMine returns the caller's attachments.
func (a *AttachmentController) ListMine(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	items, total, err := a.attachments.ListByUser(ctx.Request.Context(), userID, page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to list attachments")
		return
	}
	utils.Success(ctx, utils.Paginated(items, page, pageSize, total))
}

// Download serves an attachment's bytes with its original name.
func (a *AttachmentController) Download(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid attachment id")
		return
	}
	userID, _ := getUserID(ctx)

	att, path, err := a.attachments.Download(ctx.Request.Context(), id, userID, isAdmin(ctx))
	if err != nil {
		respondServiceError(ctx, err, 50035, "failed to load attachment")
		return
	}
	ctx.FileAttachment(path, att.OriginalName)
}
