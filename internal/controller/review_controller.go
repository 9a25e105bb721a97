package controller

import (
	"errors"

	"ai-review-be/internal/dto"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/pkg/serverutils"
	"ai-review-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IReviewController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
}

type reviewController struct {
	reviewService service.IReviewService
}

func NewReviewController(reviewService service.IReviewService) IReviewController {
	return &reviewController{
		reviewService: reviewService,
	}
}

func (c *reviewController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/review/v1")
	h.Post("", c.Start)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Cancel)
}

func (c *reviewController) Start(ctx *fiber.Ctx) error {
	var req dto.StartReviewRequest
	if err := ctx.BodyParser(&req); err != nil {
		return &serverutils.BadRequestError{Message: "invalid request body", Err: err}
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	doc, err := req.Document.ToDocument()
	if err != nil {
		return &serverutils.BadRequestError{Message: "invalid document", Err: err}
	}

	jobId, err := c.reviewService.Start(ctx.UserContext(), doc, req.Config.ToConfig())
	if err != nil {
		if errors.Is(err, entity.ErrInvalidDocument) {
			return &serverutils.BadRequestError{Message: "invalid document", Err: err}
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Review started", &dto.StartReviewResponse{
		JobId: jobId,
	}))
}

func (c *reviewController) Show(ctx *fiber.Ctx) error {
	id, err := c.jobID(ctx)
	if err != nil {
		return err
	}

	res, err := c.reviewService.Result(ctx.UserContext(), id)
	if err != nil {
		return c.mapError(id, err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show review", res))
}

func (c *reviewController) Cancel(ctx *fiber.Ctx) error {
	id, err := c.jobID(ctx)
	if err != nil {
		return err
	}

	if err := c.reviewService.Cancel(ctx.UserContext(), id); err != nil {
		return c.mapError(id, err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Review cancellation requested", nil))
}

func (c *reviewController) List(ctx *fiber.Ctx) error {
	var req dto.ListReviewsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return &serverutils.BadRequestError{Message: "invalid query", Err: err}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if req.Agent != "" {
		if _, err := entity.ParseAgentID(req.Agent); err != nil {
			return &serverutils.BadRequestError{Message: "invalid agent_id", Err: err}
		}
	}

	res, err := c.reviewService.List(ctx.UserContext(), req)
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list reviews", res))
}

func (c *reviewController) jobID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, &serverutils.BadRequestError{Message: "invalid job id", Err: err}
	}
	return id, nil
}

func (c *reviewController) mapError(id uuid.UUID, err error) error {
	if errors.Is(err, service.ErrJobNotFound) {
		return &serverutils.NotFoundError{Resource: "review job", Id: id.String()}
	}
	return err
}
