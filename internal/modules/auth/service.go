package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"authapi/internal/modules/notifier"
	"authapi/internal/modules/tokens"
	"authapi/internal/modules/users"
)

const (
	MsgRegistered    = "User registered successfully"
	MsgResetLinkSent = "Password reset link sent to your email"
	MsgPasswordReset = "Password reset successfully"
)

type PasswordCodec interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) (bool, error)
}

type TokenManager interface {
	Issue(email string) (string, error)
	Verify(token string) tokens.Verification
}

type Options struct {
	// BaseURL prefixes the reset link sent by email.
	BaseURL string
	// EchoResetToken returns the reset token in the forgot-password response.
	// It leaks a credential to whoever knows the email address.
	EchoResetToken bool
}

type MessageResult struct {
	Message string `json:"message"`
}

type LoginResult struct {
	Token string `json:"token"`
}

type ForgotPasswordResult struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// Service runs the registration, login and password reset flows. Each flow
// stops at the first failed step.
type Service struct {
	store     users.Store
	codec     PasswordCodec
	tokens    TokenManager
	notifier  notifier.Notifier
	validator *Validator
	opts      Options
	logger    *zap.Logger
}

func NewService(
	store users.Store,
	codec PasswordCodec,
	tokenManager TokenManager,
	n notifier.Notifier,
	opts Options,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		codec:     codec,
		tokens:    tokenManager,
		notifier:  n,
		validator: NewValidator(),
		opts:      opts,
		logger:    logger,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*MessageResult, error) {
	if verr := s.validator.Check(req); verr != nil {
		return nil, verr
	}

	existing, err := s.store.Get(ctx, req.Email)
	if err != nil {
		return nil, s.internal("register", "fetch user", err)
	}
	if existing != nil {
		return nil, newError(KindDuplicateUser, MsgDuplicateUser)
	}

	hash, err := s.codec.Hash(req.Password)
	if err != nil {
		return nil, s.internal("register", "hash password", err)
	}

	err = s.store.Put(ctx, users.User{
		Email:    req.Email,
		Username: req.Username,
		Password: hash,
	})
	if errors.Is(err, users.ErrUserExists) {
		return nil, newError(KindDuplicateUser, MsgDuplicateUser)
	}
	if err != nil {
		return nil, s.internal("register", "create user", err)
	}

	s.logger.Info("User registered", zap.String("email", users.NormalizeEmail(req.Email)))
	return &MessageResult{Message: MsgRegistered}, nil
}

// Login answers a missing user and a wrong password with the same error.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if verr := s.validator.Check(req); verr != nil {
		return nil, verr
	}

	user, err := s.store.Get(ctx, req.Email)
	if err != nil {
		return nil, s.internal("login", "fetch user", err)
	}
	if user == nil {
		return nil, newError(KindInvalidCredentials, MsgInvalidCredentials)
	}

	match, err := s.codec.Compare(req.Password, user.Password)
	if err != nil {
		return nil, s.internal("login", "compare password", err)
	}
	if !match {
		return nil, newError(KindInvalidCredentials, MsgInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, s.internal("login", "issue token", err)
	}
	return &LoginResult{Token: token}, nil
}

// ForgotPassword issues a reset token and mails the link. A failed send is
// logged and the flow still succeeds.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResult, error) {
	if verr := s.validator.Check(req); verr != nil {
		return nil, verr
	}

	user, err := s.store.Get(ctx, req.Email)
	if err != nil {
		return nil, s.internal("forgot-password", "fetch user", err)
	}
	if user == nil {
		return nil, newError(KindUserNotFound, MsgUserNotFound)
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, s.internal("forgot-password", "issue reset token", err)
	}

	link := notifier.ResetLink(s.opts.BaseURL, token)
	if err := s.notifier.SendReset(ctx, user.Email, link); err != nil {
		s.logger.Error("Error sending reset email",
			zap.String("email", user.Email),
			zap.Error(err))
	}

	res := &ForgotPasswordResult{Message: MsgResetLinkSent}
	if s.opts.EchoResetToken {
		res.Token = token
	}
	return res, nil
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*MessageResult, error) {
	if verr := s.validator.Check(req); verr != nil {
		return nil, verr
	}

	verification := s.tokens.Verify(req.Token)
	if !verification.Valid() {
		s.logger.Debug("Reset token rejected",
			zap.Stringer("status", verification.Status),
			zap.Error(verification.Err))
		return nil, newError(KindInvalidToken, MsgInvalidResetToken)
	}

	email := verification.Claims.Email
	user, err := s.store.Get(ctx, email)
	if err != nil {
		return nil, s.internal("reset-password", "fetch user", err)
	}
	if user == nil {
		return nil, newError(KindInvalidToken, MsgInvalidResetToken)
	}

	hash, err := s.codec.Hash(req.NewPassword)
	if err != nil {
		return nil, s.internal("reset-password", "hash password", err)
	}

	err = s.store.UpdatePassword(ctx, user.Email, hash)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, newError(KindInvalidToken, MsgInvalidResetToken)
	}
	if err != nil {
		return nil, s.internal("reset-password", "update password", err)
	}

	s.logger.Info("Password reset", zap.String("email", user.Email))
	return &MessageResult{Message: MsgPasswordReset}, nil
}

func (s *Service) internal(flow, step string, cause error) *Error {
	s.logger.Error("Auth flow failed",
		zap.String("flow", flow),
		zap.String("step", step),
		zap.Error(cause))
	return internalError(cause)
}
