package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Health always answers 200 while the process serves requests.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RenderCVInfo documents the POST /rendercv contract.
func RenderCVInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"description": "Generate PDF from YAML CV using RenderCV",
		"method":      fiber.MethodPost,
		"parameters": fiber.Map{
			"file": "YAML file containing CV data (required)",
		},
		"example": fiber.Map{
			"curl": `curl -X POST -F "file=@your_cv.yaml" http://localhost:5000/rendercv --output cv.pdf`,
		},
	})
}
