package service

import (
	"context"
	"fmt"
	"school_portal_backend/internal/config"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"
	"school_portal_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserStore interface {
	FindByID(id uint) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	UpdateLastLogin(userID uint) error
}

type AuthService struct {
	Users UserStore
	Cfg   *config.Config
}

func NewAuthService(users UserStore, cfg *config.Config) *AuthService {
	return &AuthService{Users: users, Cfg: cfg}
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login checks credentials and issues a JWT. Wrong email and wrong password
// return the same error, so the endpoint does not leak which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.Users.FindByEmail(email)
	if err != nil {
		if util.ErrorKind(err) == util.KindNotFound {
			return nil, fmt.Errorf("%w: invalid email or password", util.ErrValidation)
		}
		return nil, err
	}
	if user.Disabled {
		return nil, fmt.Errorf("%w: account is disabled", util.ErrForbidden)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", util.ErrValidation)
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	if err := s.Users.UpdateLastLogin(user.ID); err != nil {
		logger.Log.Warn("Last login update failed", zap.Uint("userId", user.ID), zap.Error(err))
	}

	user.Password = ""
	logger.Log.Info("User logged in", zap.Uint("userId", user.ID), zap.String("role", string(user.Role)))
	return &LoginResponse{Token: token, User: user}, nil
}
