package service

import (
	"secret_santa/internal/repository"
	"secret_santa/pkg/config"
)

type Services struct {
	Auth   *AuthService
	Draw   *DrawService
	Admin  *AdminService
	Events *EventHub
}

func NewServices(repos *repository.Repositories, cfg *config.Config) (*Services, error) {
	events := NewEventHub()

	authService, err := NewAuthService(repos.Participant, cfg.Auth.AdminSecret)
	if err != nil {
		return nil, err
	}
	drawService := NewDrawService(repos, events, DrawOptions{
		MaxAttempts:    cfg.Draw.MaxAttempts,
		RevealDuration: cfg.Draw.RevealDuration,
		RevealFrames:   cfg.Draw.RevealFrames,
	})
	adminService := NewAdminService(repos, authService, events)

	return &Services{
		Auth:   authService,
		Draw:   drawService,
		Admin:  adminService,
		Events: events,
	}, nil
}
