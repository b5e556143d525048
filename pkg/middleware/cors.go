package middleware

import (
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const defaultOrigins = "http://localhost:8082,http://127.0.0.1:8082"

func CORSConfig(origins string) cors.Config {
	if origins == "" {
		origins = defaultOrigins
	}
	return cors.Config{
		AllowOrigins: origins,
		AllowMethods: "POST,GET,DELETE,PUT,OPTIONS",
		AllowHeaders: "Content-Type,Cache-Control,Pragma,Authorization",
	}
}
