package images

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-gallery/auth"
	"github.com/google/uuid"
)

type ImageControllerRoutes struct {
	Upload string
	List   string
	Delete string
}

type ImageController struct {
	Debug      bool
	Logger     Logger
	Service    *Service
	Routes     *ImageControllerRoutes
	ContextKey string
}

type ImageControllerOption func(*ImageController) *ImageController

func WithImageControllerLogger(l Logger) ImageControllerOption {
	return func(c *ImageController) *ImageController {
		c.Logger = l
		return c
	}
}

func WithImageControllerService(svc *Service) ImageControllerOption {
	return func(c *ImageController) *ImageController {
		c.Service = svc
		return c
	}
}

func WithImageControllerContextKey(key string) ImageControllerOption {
	return func(c *ImageController) *ImageController {
		c.ContextKey = key
		return c
	}
}

func NewImageController(opts ...ImageControllerOption) *ImageController {
	c := &ImageController{
		Logger:     noopLogger{},
		ContextKey: "user",
		Routes: &ImageControllerRoutes{
			Upload: "/upload",
			List:   "/get",
			Delete: "/:id",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Service in image controller...")
	}

	return c
}

// RegisterImageRoutes mounts the gallery endpoints. All routes require a
// valid token; uploads additionally require the admin gate.
func RegisterImageRoutes(app fiber.Router, controller *ImageController, protected, adminOnly fiber.Handler) {
	app.Post(controller.Routes.Upload, adminOnly, controller.UploadPost)
	app.Get(controller.Routes.List, protected, controller.GetList)
	app.Delete(controller.Routes.Delete, protected, controller.Delete)
}

func (a *ImageController) UploadPost(c *fiber.Ctx) error {
	userID, err := a.requestUserID(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("image")
	if err != nil {
		a.Logger.Error("image upload missing file", "error", err)
		return errors.New("no image file provided", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	src, err := file.Open()
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "unable to read uploaded file").
			WithCode(errors.CodeBadRequest)
	}
	defer src.Close()

	record, err := a.Service.Upload(c.Context(), UploadRequest{
		Body:        src,
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
		UploadedBy:  userID,
	})
	if err != nil {
		a.Logger.Error("image upload", "error", err)
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Image uploaded successfully!",
		"image":   record,
	})
}

func (a *ImageController) GetList(c *fiber.Ctx) error {
	opts := ListOptions{
		Page:      queryInt(c, "page", 1),
		Limit:     queryInt(c, "limit", DefaultPageSize),
		SortBy:    c.Query("sortBy", "createdAt"),
		SortOrder: c.Query("sortOrder", "desc"),
	}

	result, err := a.Service.List(c.Context(), opts)
	if err != nil {
		a.Logger.Error("image list", "error", err)
		return err
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"message":       "Images fetched successfully!",
		"current_page":  result.CurrentPage,
		"total_pages":   result.TotalPages,
		"total_results": result.TotalResults,
		"images":        result.Images,
	})
}

func (a *ImageController) Delete(c *fiber.Ctx) error {
	userID, err := a.requestUserID(c)
	if err != nil {
		return err
	}

	imageID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errors.New("invalid image id", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	if err := a.Service.Delete(c.Context(), imageID, userID); err != nil {
		a.Logger.Error("image delete", "error", err)
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Image deleted successfully!",
	})
}

func (a *ImageController) requestUserID(c *fiber.Ctx) (uuid.UUID, error) {
	claims, ok := auth.GetFiberClaims(c, a.ContextKey)
	if !ok {
		return uuid.Nil, auth.ErrUnableToDecodeSession
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryAuth, "invalid subject claim").
			WithCode(errors.CodeUnauthorized)
	}

	return userID, nil
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}

	return val
}
