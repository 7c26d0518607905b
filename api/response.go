package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

const (
	statusSuccess = "success"
	statusError   = "error"
	statusFailed  = "failed"
)

// envelope is the body of every JSON response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(data any) envelope {
	return envelope{Status: statusSuccess, Data: data}
}

func successMessage(message string, data any) envelope {
	return envelope{Status: statusSuccess, Message: message, Data: data}
}

// errorMessage is the {"status":"error","message":...} shape.
func errorMessage(message string) envelope {
	return envelope{Status: statusError, Message: message}
}

// failed is the {"status":"failed","error":...} shape.
func failed(message string) envelope {
	return envelope{Status: statusFailed, Error: message}
}

// sendIndented writes body as two-space indented JSON.
func sendIndented(c *fiber.Ctx, status int, body envelope) error {
	raw, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	c.Status(status)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(raw)
}
