package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
	"go-storefront/utils"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	MarkVerified(ctx context.Context, token string) error
}

type VerificationSender interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
}

// UserController handles user-related requests
type UserController struct {
	Users UserRepository
	Email VerificationSender
}

func NewUserController(users UserRepository, email VerificationSender) *UserController {
	return &UserController{Users: users, Email: email}
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &input) {
		return
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || len(input.Password) < 6 {
		badRequest(w, r, "email and a password of at least 6 characters are required")
		return
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	user := models.User{
		ID:         primitive.NewObjectID(),
		Name:       input.Name,
		Email:      input.Email,
		Password:   hashedPassword,
		Role:       "user",
		IsVerified: false,
	}

	// Not a JWT: a verification link must never double as a bearer token.
	verificationToken := uuid.NewString()
	user.VerificationToken = verificationToken

	ctx, cancel := storeContext(r)
	defer cancel()
	if err := uc.Users.Create(ctx, &user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			respondFailure(w, r, http.StatusConflict, "duplicate", "User already exists", "")
			return
		}
		respondError(w, r, err)
		return
	}

	if err := uc.Email.SendVerificationEmail(ctx, user.Email, verificationToken); err != nil {
		log.Printf("user=%s verification email failed: %v", user.ID.Hex(), err)
	}

	respondMessage(w, http.StatusCreated, "User registered successfully. Please check your email to verify your account.")
}

// VerifyEmail handles email verification
func (uc *UserController) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		badRequest(w, r, "Verification token missing")
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	if err := uc.Users.MarkVerified(ctx, token); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			badRequest(w, r, "User not found or already verified")
			return
		}
		respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "Email verified successfully. You can now log in.")
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &creds) {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	user, err := uc.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondFailure(w, r, http.StatusUnauthorized, "unauthorized", "Invalid email or password", "")
			return
		}
		respondError(w, r, err)
		return
	}

	if !utils.CheckPassword(user.Password, creds.Password) {
		respondFailure(w, r, http.StatusUnauthorized, "unauthorized", "Invalid email or password", "")
		return
	}
	if !user.IsVerified {
		respondFailure(w, r, http.StatusUnauthorized, "unauthorized", "Email not verified", "")
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GetProfile retrieves the authenticated user's profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	user, err := uc.Users.GetUser(ctx, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}
