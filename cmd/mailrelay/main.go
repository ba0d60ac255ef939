// The mail relay is the one process that talks SMTP. The API server
// posts {email, otp} to it and it delivers the collection code to the
// contributor's inbox.
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gopkg.in/gomail.v2"

	"github.com/waste2worth/backend/internal/config"
)

type sendOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type sender interface {
	DialAndSend(...*gomail.Message) error
}

func sendOTPHandler(cfg *config.Config, dialer sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.OTP == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and otp are required"})
			return
		}

		m := gomail.NewMessage()
		m.SetHeader("From", cfg.SMTP.Email)
		m.SetHeader("To", req.Email)
		m.SetHeader("Subject", "Waste2worth : Your OTP for Waste Collection Confirmation")
		m.SetBody("text/plain", fmt.Sprintf(
			"Your OTP for confirming the waste collection is: %s\n\nIt expires in 10 minutes. Share it only with the collector at your door.",
			req.OTP,
		))

		if err := dialer.DialAndSend(m); err != nil {
			log.Printf("send to %s failed: %v", req.Email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send email"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "otp sent"})
	}
}

func main() {
	_ = godotenv.Load()

	cfg := config.New()
	if cfg.SMTP.Email == "" || cfg.SMTP.Password == "" {
		log.Fatal("SMTP_EMAIL and SMTP_PASSWORD must be set")
	}

	dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Email, cfg.SMTP.Password)

	r := gin.Default()
	r.POST("/send-otp", sendOTPHandler(cfg, dialer))

	port := cfg.MailRelayPort
	log.Printf("mail relay listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("mail relay exit: %v", err)
	}
}
