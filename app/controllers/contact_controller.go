package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/hfactor/hfactor-site/app/models"
	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/hcaptcha"
	"github.com/hfactor/hfactor-site/internal/pkg/keygen"
	"github.com/hfactor/hfactor-site/internal/pkg/kv"
	"github.com/hfactor/hfactor-site/internal/pkg/mail"
	"github.com/hfactor/hfactor-site/internal/pkg/metrics"
)

// CaptchaVerifier checks a captcha token. hcaptcha.Verifier implements it.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// ContactController accepts contact form posts. Mailer, Store and Captcha are
// optional.
type ContactController struct {
	cfg     *config.Config
	Mailer  mail.Sender
	Store   kv.Store
	Captcha CaptchaVerifier
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewContactController(cfg *config.Config) *ContactController {
	return &ContactController{cfg: cfg, Now: time.Now}
}

// HandleContact validates the submission, then relays and stores it. Relay
// and storage failures are logged and never change the response.
func (cc *ContactController) HandleContact(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Contact] Contact form error: %v", r)
			cc.Metrics.ContactSubmission("error")
			err = jsonError(c, fiber.StatusInternalServerError, "Internal server error")
		}
	}()

	var sub models.ContactSubmission
	if err := c.BodyParser(&sub); err != nil {
		log.Warnf("[Contact] Unreadable contact form: %v", err)
		cc.Metrics.ContactSubmission("invalid")
		return jsonError(c, fiber.StatusBadRequest, "Required fields missing")
	}

	if err := sub.Validate(); err != nil {
		cc.Metrics.ContactSubmission("invalid")
		switch {
		case errors.Is(err, models.ErrContactFieldsMissing):
			return jsonError(c, fiber.StatusBadRequest, "Required fields missing")
		case errors.Is(err, models.ErrContactInvalidEmail):
			return jsonError(c, fiber.StatusBadRequest, "Invalid email format")
		default:
			log.Errorf("[Contact] Contact form error: %v", err)
			return jsonError(c, fiber.StatusInternalServerError, "Internal server error")
		}
	}

	ip := GetClientIP(c)
	if cc.Captcha != nil {
		if ok, err := cc.Captcha.Verify(c.UserContext(), c.FormValue(hcaptcha.FormField), ip); !ok {
			log.Warnf("[Contact] Captcha rejected for %s: %v", ip, err)
			cc.Metrics.ContactSubmission("captcha_failed")
			return jsonError(c, fiber.StatusBadRequest, "Captcha verification failed")
		}
	}

	sub.Timestamp = models.FormatISOTime(cc.Now())
	sub.IP = ip
	sub.UserAgent = c.Get(fiber.HeaderUserAgent)

	cc.deliver(c.UserContext(), &sub)

	cc.Metrics.ContactSubmission("accepted")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Contact form submitted successfully",
	})
}

func (cc *ContactController) deliver(ctx context.Context, sub *models.ContactSubmission) {
	var g errgroup.Group
	if cc.Mailer != nil {
		g.Go(func() error {
			err := cc.Mailer.Send(ctx, mail.Message{
				To:      cc.cfg.ContactEmail,
				From:    cc.cfg.ContactEmailFrom,
				Subject: sub.EmailSubject(),
				Text:    sub.EmailText(),
				ReplyTo: sub.Email,
			})
			if err != nil {
				log.Errorf("[Contact] Email relay failed: %v", err)
			}
			return nil
		})
	}
	if cc.Store != nil {
		g.Go(func() error {
			key, err := keygen.ContactKey(cc.Now())
			if err == nil {
				err = kv.PutJSON(ctx, cc.Store, key, sub, nil)
			}
			if err != nil {
				log.Errorf("[Contact] Storing submission failed: %v", err)
				return nil
			}
			log.Infof("[Contact] Stored submission %s", key)
			return nil
		})
	}
	_ = g.Wait()
}
