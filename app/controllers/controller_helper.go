package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

const (
	corsMaxAge = "86400"

	MethodsGet  = "GET, OPTIONS"
	MethodsPost = "POST, OPTIONS"

	HeadersDefault = "Content-Type"
	HeadersWebhook = "Content-Type, stripe-signature"
)

// AllowAnyOrigin marks every /api response as readable from any origin.
func AllowAnyOrigin(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	return c.Next()
}

// Preflight answers OPTIONS with 200, an empty body and the route's methods.
func Preflight(methods, headers string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, methods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, headers)
		c.Set(fiber.HeaderAccessControlMaxAge, corsMaxAge)
		c.Status(fiber.StatusOK)
		return nil
	}
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": message})
}

// ErrorHandler renders errors that escape a handler with the JSON error body.
// Only fiber errors keep their message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return jsonError(c, fe.Code, fe.Message)
	}
	log.Errorf("[Server] Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	return jsonError(c, fiber.StatusInternalServerError, "Internal server error")
}

// GetClientIP determines the client address considering Cloudflare and
// standard proxy headers.
func GetClientIP(c *fiber.Ctx) string {
	// 1. Cloudflare provides the original client IP in this header
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	// 2. X-Forwarded-For can contain a list of IPs, the first one is the client
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}

	// 3. Remote address of the connection
	return c.IP()
}
