package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"competitive-programming-platform/internal/contestcore"
	"competitive-programming-platform/pkg/database"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Service handles authentication operations
type Service struct {
	db *database.DB
}

// NewService creates a new auth service
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// User represents a user in the response
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Rating   int    `json:"rating"`
	Role     string `json:"role"`
}

// Default role assigned at registration; contest organizers are promoted out
// of band (no self-service escalation endpoint).
const defaultRole = "participant"

// Login handles user login
func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// The user is looked up by email only; req.Password is not checked
	// In production, you should use proper password hashing (bcrypt)
	ctx := context.Background()
	
	var user User
	query := `
		SELECT id, email, username, full_name, rating, role
		FROM users
		WHERE email = $1
	`

	err := s.db.Pool.QueryRow(ctx, query, req.Email).Scan(
		&user.ID, &user.Email, &user.Username, &user.FullName, &user.Rating, &user.Role,
	)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	// Generate JWT token
	token, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	response := AuthResponse{
		Token: token,
		User:  user,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Register handles user registration
func (s *Service) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Generate UUID for the user
	userID := uuid.New().String()
	
	ctx := context.Background()
	
	// Insert user into database
	query := `
		INSERT INTO users (id, email, username, full_name, rating, max_rating, role)
		VALUES ($1, $2, $3, $4, 1200, 1200, $5)
		RETURNING id, email, username, full_name, rating, role
	`

	var user User
	err := s.db.Pool.QueryRow(ctx, query, userID, req.Email, req.Username, req.FullName, defaultRole).Scan(
		&user.ID, &user.Email, &user.Username, &user.FullName, &user.Rating, &user.Role,
	)
	if err != nil {
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	// Generate JWT token
	token, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	response := AuthResponse{
		Token: token,
		User:  user,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// Verify implements contestcore.TokenVerifier: authenticate a bearer token
// presented on a C5 session handshake, returning the caller's identity and
// role.
func (s *Service) Verify(ctx context.Context, tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.getJWTSecret()), nil
	})
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", "", fmt.Errorf("invalid token: missing user_id claim")
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = defaultRole
	}
	return userID, role, nil
}

// generateToken creates a JWT token for a user, carrying their role so C5
// can authorize room-level actions without a second database round trip.
func (s *Service) generateToken(userID, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour * 24 * 7).Unix(), // 7 days
		"iat":     time.Now().Unix(),
	})

	return token.SignedString([]byte(s.getJWTSecret()))
}

// getJWTSecret returns the JWT secret from environment variables
func (s *Service) getJWTSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "your-secret-key-change-this-in-production"
	}
	return secret
}

var _ contestcore.TokenVerifier = (*Service)(nil)