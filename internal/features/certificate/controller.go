package certificate

import (
	"go-letters/internal/common/response"

	"github.com/gofiber/fiber/v2"
)

type CertificateController struct {
	Service CertificateService
}

func NewCertificateController(service CertificateService) *CertificateController {
	return &CertificateController{Service: service}
}

// Verify godoc
// @Summary Verify a signed document
// @Description Public lookup of a certificate by its verification code
// @Tags verification
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} Verification
// @Failure 404 {object} response.ErrorBody
// @Failure 429 {object} map[string]interface{}
// @Router /api/verify/{code} [get]
func (ctrl *CertificateController) Verify(c *fiber.Ctx) error {
	v, err := ctrl.Service.Verify(c.UserContext(), c.Params("code"))
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(v)
}
