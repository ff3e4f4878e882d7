package reminder

import (
	"go-letters/internal/common/response"

	"github.com/gofiber/fiber/v2"
)

type ReminderController struct {
	Service ReminderService
}

func NewReminderController(service ReminderService) *ReminderController {
	return &ReminderController{Service: service}
}

// RunNow godoc
// @Summary Run the reminder job immediately
// @Tags reminders
// @Produce json
// @Success 200 {object} Run
// @Failure 409 {object} response.ErrorBody
// @Router /api/reminders/run [post]
func (ctrl *ReminderController) RunNow(c *fiber.Ctx) error {
	run, err := ctrl.Service.RunNow(c.UserContext(), "manual")
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(run)
}

// ListRuns godoc
// @Summary Recent reminder runs
// @Tags reminders
// @Produce json
// @Param limit query int false "Number of runs"
// @Success 200 {array} Run
// @Router /api/reminders/runs [get]
func (ctrl *ReminderController) ListRuns(c *fiber.Ctx) error {
	runs, err := ctrl.Service.ListRuns(c.UserContext(), int64(c.QueryInt("limit", 50)))
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(runs)
}
