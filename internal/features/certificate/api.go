package certificate

import (
	"go-letters/internal/common/api"
	"go-letters/internal/ratelimit"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CertificateApi struct {
	controller *CertificateController
	limiter    ratelimit.Limiter
	logger     *zap.Logger
}

func NewCertificateApi(controller *CertificateController, limiter ratelimit.Limiter, logger *zap.Logger) api.Route {
	return &CertificateApi{
		controller: controller,
		limiter:    limiter,
		logger:     logger,
	}
}

func (h *CertificateApi) Setup(app *fiber.App) {
	// Public: verification links are printed on the signed document.
	app.Get("/api/verify/:code", ratelimit.Middleware(h.limiter, h.logger), h.controller.Verify)
}
