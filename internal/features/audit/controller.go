package audit

import (
	common_models "go-letters/internal/common/models"
	"go-letters/internal/common/response"

	"github.com/gofiber/fiber/v2"
)

type AuditController struct {
	Service AuditService
}

func NewAuditController(service AuditService) *AuditController {
	return &AuditController{Service: service}
}

// ListLogs godoc
// @Summary List audit logs
// @Tags audit
// @Produce json
// @Param module query string false "Collection name"
// @Param record_id query string false "Record ID"
// @Param actor_id query string false "Actor ID"
// @Success 200 {array} common_models.AuditLog
// @Router /api/audit-logs [get]
func (ctrl *AuditController) ListLogs(c *fiber.Ctx) error {
	page := common_models.PageQuery{
		Page:  int64(c.QueryInt("page", 1)),
		Limit: int64(c.QueryInt("limit", 20)),
	}

	filters := make(map[string]interface{})
	for _, key := range []string{"module", "record_id", "actor_id", "action"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	logs, err := ctrl.Service.ListLogs(c.UserContext(), filters, page)
	if err != nil {
		return response.Error(c, err)
	}

	return c.JSON(logs)
}
